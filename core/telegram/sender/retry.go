package sender

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/metrics"
	"github.com/m3rciful/pdfbot/core/telegram/netutil"
)

const component = "tg.sender"

// run executes c until it succeeds, fails permanently, exhausts its retries
// or runs out of MaxDuration. A flood-wait error overrides the backoff.
func (d *Dispatcher) run(ctx context.Context, c call) error {
	budget, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	base := callAttrs(c)
	logger.Debug(ctx, component, "send.start", base...)

	limit := d.opts.MaxRetries + 1
	var (
		err     error
		attempt int
	)
	for attempt = 1; attempt <= limit; attempt++ {
		if budget.Err() != nil {
			if err == nil {
				err = budget.Err()
			}
			break
		}
		if err = c.fn(); err == nil {
			break
		}
		if attempt == limit || !netutil.ShouldRetry(err) {
			break
		}
		delay := d.backoff(attempt, err)
		if !sleep(budget, delay) {
			break
		}
		logger.Debug(ctx, component, "send.retry.backoff",
			append(base, slog.Int("attempt", attempt), slog.Duration("backoff", delay))...)
	}
	attempt = min(attempt, limit)
	took := slog.Duration("took", time.Since(start))

	if err == nil {
		metrics.IncSend(c.action, "ok")
		event := "send.success"
		if attempt > 1 {
			event = "send.retry.success"
		}
		logger.Debug(ctx, component, event, append(base, slog.Int("attempts", attempt), took)...)
		return nil
	}

	d.failed.Add(1)
	kind := errorKind(err)
	metrics.IncSend(c.action, kind)
	logger.Error(ctx, component, "send.fail", append(base,
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("err_code", kind),
		slog.Int("attempts", attempt),
		took,
	)...)
	return err
}

func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	if wait, ok := netutil.RetryAfter(err); ok {
		return wait
	}
	return d.opts.RetryBackoff * time.Duration(attempt)
}

// sleep waits for delay and reports false when ctx ended first.
func sleep(ctx context.Context, delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func callAttrs(c call) []slog.Attr {
	attrs := []slog.Attr{slog.String("operation", c.action)}
	if c.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", c.endpoint))
	}
	return attrs
}
