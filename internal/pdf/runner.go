package pdf

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/metrics"
)

// ErrBusy is returned when no worker slot frees up before the caller's deadline.
var ErrBusy = errors.New("pdf: all workers busy")

// Runner bounds PDF work: at most N operations hold a worker slot and each
// one is abandoned after its timeout. An abandoned operation gives its slot
// back immediately but its goroutine runs on until fn returns, so the number
// of busy goroutines may exceed N by Abandoned().
type Runner struct {
	sem       *semaphore.Weighted
	timeout   time.Duration
	abandoned atomic.Int64
}

// NewRunner builds a Runner with workers slots and a per-operation timeout.
func NewRunner(workers int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = 2
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{sem: semaphore.NewWeighted(int64(workers)), timeout: timeout}
}

// Timeout returns the per-operation limit.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Abandoned returns how many timed out operations are still running.
func (r *Runner) Abandoned() int64 { return r.abandoned.Load() }

// Run executes fn under a worker slot and the operation timeout.
func (r *Runner) Run(ctx context.Context, op string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		metrics.ObservePDF(op, time.Since(start), false)
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrBusy
		}
		return err
	}
	var (
		once      sync.Once
		mu        sync.Mutex
		abandoned bool
	)
	release := func() { once.Do(func() { r.sem.Release(1) }) }

	done := make(chan error, 1)
	go func() {
		defer func() {
			mu.Lock()
			if abandoned {
				r.abandoned.Add(-1)
				metrics.AddAbandonedPDF(-1)
			}
			mu.Unlock()
		}()
		defer release()
		defer func() {
			if rec := recover(); rec != nil {
				done <- errors.New("pdf: operation panicked")
			}
		}()
		done <- fn()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		// fn may finish while we decide; its result wins over the timeout.
		mu.Lock()
		select {
		case err = <-done:
		default:
			abandoned = true
			r.abandoned.Add(1)
			metrics.AddAbandonedPDF(1)
		}
		mu.Unlock()
		if abandoned {
			release()
			err = ctx.Err()
			logger.Warn(ctx, "pdf", "pdf.abandoned",
				slog.String("op", op),
				slog.Duration("timeout", r.timeout),
			)
		}
	}

	took := time.Since(start)
	metrics.ObservePDF(op, took, err == nil)
	logger.Debug(ctx, "pdf", "pdf.op",
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	)
	return err
}
