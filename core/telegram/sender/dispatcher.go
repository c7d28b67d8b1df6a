// Package sender runs outbound Bot API calls with bounded retries, either
// queued for background workers or inline for callers that need the result.
package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilCall = errors.New("telegram sender: nil call")
)

// Options tunes the dispatcher. Zero values take the defaults below.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
	// MaxDuration bounds one call across all of its attempts.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// call is one Bot API request. fn must be safe to repeat.
type call struct {
	ctx      context.Context
	action   string
	endpoint string
	fn       func() error
}

// Dispatcher owns the outbound queue and its workers.
type Dispatcher struct {
	opts   Options
	queue  chan call
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts opts.Workers workers draining the queue.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:   opts,
		queue:  make(chan call, opts.QueueSize),
		closed: make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for c := range d.queue {
				// Queued sends outlive the update that produced them.
				_ = d.run(context.WithoutCancel(c.ctx), c)
			}
		}()
	}
	return d
}

// Enqueue schedules fn and returns without waiting. The outcome is only
// logged and counted.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, fn func() error) error {
	if fn == nil {
		return errNilCall
	}
	select {
	case <-d.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case d.queue <- call{ctx: orBackground(ctx), action: action, endpoint: endpoint, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn inline under the same retry policy and returns its last error.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, fn func() error) error {
	if fn == nil {
		return errNilCall
	}
	ctx = orBackground(ctx)
	return d.run(ctx, call{ctx: ctx, action: action, endpoint: endpoint, fn: fn})
}

// ErrorCount returns how many calls failed after their last attempt.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new work, then waits for the queued calls to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.closed)
		close(d.queue)
		d.wg.Wait()
	})
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
