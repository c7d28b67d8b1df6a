package language

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Store persists the language code chosen by each user.
type Store interface {
	// Get returns the stored code; found is false when the user never picked one.
	Get(ctx context.Context, userID int64) (code string, found bool, err error)
	// Upsert overwrites the user's code.
	Upsert(ctx context.Context, userID int64, code string) error
}

// SQLStore keeps preferences in the user_languages table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection. Queries are rebound for the driver.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const (
	selectLanguage = `SELECT language FROM user_languages WHERE user_id = ?`
	upsertLanguage = `INSERT INTO user_languages (user_id, language, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET language = excluded.language, updated_at = CURRENT_TIMESTAMP`
)

// Get returns the stored code for userID; ok is false when none was chosen.
func (s *SQLStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	var code string
	err := s.db.GetContext(ctx, &code, s.db.Rebind(selectLanguage), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select language: %w", err)
	}
	return code, true, nil
}

// Upsert records code as the language of userID, replacing any earlier choice.
func (s *SQLStore) Upsert(ctx context.Context, userID int64, code string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertLanguage), userID, code); err != nil {
		return fmt.Errorf("upsert language: %w", err)
	}
	return nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	codes map[int64]string
}

// NewMemoryStore returns an empty process-local Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[int64]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.codes[userID]
	return code, ok, nil
}

// Upsert implements Store.
func (m *MemoryStore) Upsert(_ context.Context, userID int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[userID] = code
	return nil
}
