// Package session holds the per-user scratch data of one running conversation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSlotMissing is returned when a handler reads a slot an earlier step never filled.
var ErrSlotMissing = errors.New("session: slot missing")

// Session stores the conversation position and named slots for a user.
// Slot values are kept JSON encoded so every Store persists them the same way.
type Session struct {
	UserID    int64             `json:"user_id"`
	ChatID    int64             `json:"chat_id"`
	Flow      string            `json:"flow"`
	State     string            `json:"state"`
	Slots     map[string]string `json:"slots"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New creates an empty session for the user bound to flow.
func New(userID, chatID int64, flow string) *Session {
	return &Session{
		UserID:    userID,
		ChatID:    chatID,
		Flow:      flow,
		Slots:     make(map[string]string),
		UpdatedAt: time.Now(),
	}
}

// Set stores value under key.
func (s *Session) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", key, err)
	}
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	s.Slots[key] = string(data)
	return nil
}

// Has reports whether key was set.
func (s *Session) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Slots[key]
	return ok
}

// Delete removes key.
func (s *Session) Delete(key string) {
	if s == nil {
		return
	}
	delete(s.Slots, key)
}

// Clone returns a deep copy so stores never share slot maps with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	return &cp
}

// Lookup decodes the slot stored under key. It returns ErrSlotMissing when the
// slot was never populated.
func Lookup[T any](s *Session, key string) (T, error) {
	var zero T
	if s == nil {
		return zero, fmt.Errorf("%w: %s", ErrSlotMissing, key)
	}
	raw, ok := s.Slots[key]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrSlotMissing, key)
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, fmt.Errorf("session: decode %q: %w", key, err)
	}
	return out, nil
}

// Store persists sessions keyed by user.
type Store interface {
	Load(ctx context.Context, userID int64) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
