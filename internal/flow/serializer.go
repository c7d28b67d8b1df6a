package flow

import (
	"context"
	"sync"
	"time"
)

// Serializer runs submitted work one at a time per key. Every key gets its own
// goroutine with a FIFO mailbox; the goroutine exits after staying idle.
type Serializer struct {
	mu     sync.Mutex
	actors map[int64]*actor
	idle   time.Duration
	depth  int
}

type actor struct {
	jobs    chan *serialJob
	pending int
}

type serialJob struct {
	ctx  context.Context
	fn   func(context.Context)
	done chan struct{}
	// ran is written by the actor before done is closed.
	ran bool
}

// NewSerializer builds a Serializer whose actors exit after idle without work.
func NewSerializer(idle time.Duration) *Serializer {
	if idle <= 0 {
		idle = time.Minute
	}
	return &Serializer{
		actors: make(map[int64]*actor),
		idle:   idle,
		depth:  32,
	}
}

// Do runs fn on the key's actor and waits for it to finish. It returns
// ctx.Err() only when fn was skipped because ctx ended before fn started.
// Once queued, the job is always awaited, so a nil error means fn ran to
// completion.
func (s *Serializer) Do(ctx context.Context, key int64, fn func(context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j := &serialJob{ctx: ctx, fn: fn, done: make(chan struct{})}

	s.mu.Lock()
	a, ok := s.actors[key]
	if !ok {
		a = &actor{jobs: make(chan *serialJob, s.depth)}
		s.actors[key] = a
		go s.loop(key, a)
	}
	a.pending++
	s.mu.Unlock()

	select {
	case a.jobs <- j:
	case <-ctx.Done():
		s.mu.Lock()
		a.pending--
		s.mu.Unlock()
		return ctx.Err()
	}

	<-j.done
	if !j.ran {
		return ctx.Err()
	}
	return nil
}

// Active reports the number of live actors.
func (s *Serializer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors)
}

func (s *Serializer) loop(key int64, a *actor) {
	timer := time.NewTimer(s.idle)
	defer timer.Stop()
	for {
		select {
		case j := <-a.jobs:
			if j.ctx.Err() == nil {
				j.fn(j.ctx)
				j.ran = true
			}
			close(j.done)
			s.mu.Lock()
			a.pending--
			s.mu.Unlock()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.idle)
		case <-timer.C:
			s.mu.Lock()
			if a.pending == 0 {
				delete(s.actors, key)
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			timer.Reset(s.idle)
		}
	}
}
