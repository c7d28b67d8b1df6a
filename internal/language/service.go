package language

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/pdfbot/core/logger"
)

// Service resolves the effective language of a user.
type Service struct {
	store    Store
	fallback string
}

// NewService builds a Service. An unknown fallback code falls back to DefaultCode.
func NewService(store Store, fallback string) *Service {
	if !IsCode(fallback) {
		fallback = DefaultCode
	}
	return &Service{store: store, fallback: fallback}
}

// Default returns the configured fallback code.
func (s *Service) Default() string { return s.fallback }

// Resolve returns the stored code, else the code derived from the platform
// locale, else the default. It never writes.
func (s *Service) Resolve(ctx context.Context, userID int64, platform string) string {
	code, found, err := s.store.Get(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "lang", "lang.lookup",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
	if found && IsCode(code) {
		return code
	}
	if code, ok := FromShortCode(platform); ok {
		return code
	}
	return s.fallback
}

// Set stores the language behind a picker label and returns its code.
func (s *Service) Set(ctx context.Context, userID int64, name string) (string, error) {
	code, ok := CodeFor(name)
	if !ok {
		return "", fmt.Errorf("language: unknown display name %q", name)
	}
	if err := s.store.Upsert(ctx, userID, code); err != nil {
		return "", err
	}
	logger.Info(ctx, "lang", "lang.set",
		slog.Int64("user_id", userID),
		slog.String("lang", code),
	)
	return code, nil
}

// Menu lays out every language except current, sorted by code, two per row.
func Menu(current string) [][]Language {
	var rows [][]Language
	var row []Language
	for _, l := range All() {
		if l.Code == current {
			continue
		}
		row = append(row, l)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}
