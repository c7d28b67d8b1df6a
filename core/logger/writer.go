package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// sink is one log destination. Lines below min are not written to it.
type sink struct {
	w   io.Writer
	min slog.Level
}

type line struct {
	level slog.Level
	data  []byte
}

type bufferedSink struct {
	buf *bufio.Writer
	min slog.Level
}

// asyncWriter fans formatted lines out to its sinks from a single goroutine.
// When the queue is full, debug lines are dropped and counted; everything else
// waits for room.
type asyncWriter struct {
	queue    chan line
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []bufferedSink
	mu       sync.Mutex
	writeErr error
	dropped  atomic.Uint64
}

func newAsyncWriter(sinks []sink, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	out := make([]bufferedSink, 0, len(sinks))
	for _, s := range sinks {
		if s.w == nil {
			continue
		}
		out = append(out, bufferedSink{buf: bufio.NewWriterSize(s.w, bufSize), min: s.min})
	}
	aw := &asyncWriter{
		queue:    make(chan line, 512),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    out,
	}
	go aw.loop()
	return aw
}

// allLevels builds sinks accepting every line.
func allLevels(ws ...io.Writer) []sink {
	out := make([]sink, 0, len(ws))
	for _, w := range ws {
		out = append(out, sink{w: w, min: slog.LevelDebug})
	}
	return out
}

func (w *asyncWriter) loop() {
	for {
		select {
		case l, ok := <-w.queue:
			if !ok {
				_ = w.flushAll()
				close(w.done)
				return
			}
			if err := w.writeAll(l); err != nil {
				w.setErr(err)
			}
		case ack := <-w.flushReq:
			w.drain()
			ack <- w.flushAll()
		}
	}
}

// Write queues p, copied, for the sinks accepting level.
func (w *asyncWriter) Write(level slog.Level, p []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	l := line{level: level, data: append([]byte(nil), p...)}
	select {
	case w.queue <- l:
		return nil
	default:
	}
	if level < slog.LevelInfo {
		w.dropped.Add(1)
		return nil
	}
	w.queue <- l
	return nil
}

// Dropped returns the number of debug lines discarded under pressure.
func (w *asyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Flush waits until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.getErr()
}

// drain writes the lines already queued without waiting for new ones.
func (w *asyncWriter) drain() {
	for {
		select {
		case l, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.writeAll(l); err != nil {
				w.setErr(err)
			}
		default:
			return
		}
	}
}

func (w *asyncWriter) writeAll(l line) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if l.level < s.min {
			continue
		}
		if _, err := s.buf.Write(l.data); err != nil {
			return err
		}
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
