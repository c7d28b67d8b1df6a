// Package observability forwards escalated failures to an external error tracker.
package observability

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/pdfbot/core/logger"
)

// Report describes one escalated failure.
type Report struct {
	Err    error
	Level  slog.Level
	UserID int64
	Tags   map[string]string
}

// Sink accepts reports. Capture must not block the caller.
type Sink interface {
	Capture(ctx context.Context, r Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Report)

// Capture calls f.
func (f SinkFunc) Capture(ctx context.Context, r Report) { f(ctx, r) }

// LogSink writes reports to the structured log.
type LogSink struct{}

// Capture logs r at its level.
func (LogSink) Capture(ctx context.Context, r Report) {
	attrs := make([]slog.Attr, 0, len(r.Tags)+2)
	if r.Err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(r.Err.Error(), 512)))
	}
	if r.UserID != 0 {
		attrs = append(attrs, slog.Int64("user_id", r.UserID))
	}
	for k, v := range r.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.Event(ctx, "observability", r.Level, "escalate", attrs...)
}

// Multi fans a report out to every sink.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(ctx context.Context, r Report) {
		for _, s := range out {
			s.Capture(ctx, r)
		}
	})
}

var global atomic.Value

// SetDefault installs the sink used by Capture.
func SetDefault(s Sink) {
	if s == nil {
		s = LogSink{}
	}
	global.Store(&s)
}

// Default returns the installed sink, falling back to LogSink.
func Default() Sink {
	if v, ok := global.Load().(*Sink); ok && v != nil {
		return *v
	}
	return LogSink{}
}

// Capture sends r to the default sink.
func Capture(ctx context.Context, r Report) {
	Default().Capture(ctx, r)
}
