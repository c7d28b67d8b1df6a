package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/m3rciful/pdfbot/core/buildinfo"
	coreconfig "github.com/m3rciful/pdfbot/core/config"
	"github.com/m3rciful/pdfbot/core/logger"
)

// SentrySink reports through the sentry-go SDK. Its transport is asynchronous,
// so Capture only enqueues the event.
type SentrySink struct {
	hub *sentry.Hub
}

// InitSentry configures the SDK. It returns a nil sink and a no-op flush when the DSN is empty.
func InitSentry(cfg coreconfig.SentryConfig) (*SentrySink, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("sentry init: %w", err)
	}
	logger.Info(context.Background(), "observability", "sentry.ready",
		slog.String("mode", cfg.Environment),
	)
	flush := func() { sentry.Flush(2 * time.Second) }
	return &SentrySink{hub: sentry.CurrentHub()}, flush, nil
}

// Capture sends r as an exception event.
func (s *SentrySink) Capture(_ context.Context, r Report) {
	if s == nil || s.hub == nil || r.Err == nil {
		return
	}
	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(r.Level))
		if r.UserID != 0 {
			scope.SetUser(sentry.User{ID: strconv.FormatInt(r.UserID, 10)})
		}
		scope.SetTags(r.Tags)
		hub.CaptureException(r.Err)
	})
}

func sentryLevel(l slog.Level) sentry.Level {
	switch {
	case l >= slog.LevelError:
		return sentry.LevelError
	case l >= slog.LevelWarn:
		return sentry.LevelWarning
	case l >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
