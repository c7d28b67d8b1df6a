package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/pdfbot/core/logger"
)

// MemoryStore keeps sessions in process. Sessions idle for longer than the TTL
// are dropped by a background sweeper.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore constructs an in-memory Store. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.sweep(sweepInterval(ttl))
	}
	return m
}

func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Second {
		iv = time.Second
	}
	if iv > time.Minute {
		iv = time.Minute
	}
	return iv
}

// Load returns a copy of the user's session when present and not expired.
func (m *MemoryStore) Load(_ context.Context, userID int64) (*Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[userID]
	if !ok || m.expired(sess) {
		return nil, false, nil
	}
	return sess.Clone(), true, nil
}

// Save stores a copy of s and refreshes its idle deadline.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	cp := s.Clone()
	cp.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = cp
	return nil
}

// Delete removes the user's session.
func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the sweeper.
func (m *MemoryStore) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

func (m *MemoryStore) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			if n := m.purge(); n > 0 {
				logger.Debug(context.Background(), "flow", "session.expired",
					slog.Int("count", n),
				)
			}
		}
	}
}

func (m *MemoryStore) purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
