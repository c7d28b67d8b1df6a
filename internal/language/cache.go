package language

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/m3rciful/pdfbot/core/metrics"
)

// CachedStore puts a bounded TTL cache in front of another Store. Upserts
// write through, so a single instance never serves a stale code.
type CachedStore struct {
	next  Store
	cache otter.Cache[int64, string]
}

// NewCachedStore wraps next with a cache of the given capacity and TTL.
func NewCachedStore(next Store, capacity int, ttl time.Duration) (*CachedStore, error) {
	if capacity <= 0 {
		capacity = 10_000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c, err := otter.MustBuilder[int64, string](capacity).WithTTL(ttl).Build()
	if err != nil {
		return nil, fmt.Errorf("language cache with capacity %d: %w", capacity, err)
	}
	return &CachedStore{next: next, cache: c}, nil
}

func (s *CachedStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	if code, ok := s.cache.Get(userID); ok {
		metrics.IncCacheRequest("language", "hit")
		return code, true, nil
	}
	metrics.IncCacheRequest("language", "miss")
	code, found, err := s.next.Get(ctx, userID)
	if err != nil || !found {
		return code, found, err
	}
	s.cache.Set(userID, code)
	return code, true, nil
}

func (s *CachedStore) Upsert(ctx context.Context, userID int64, code string) error {
	if err := s.next.Upsert(ctx, userID, code); err != nil {
		s.cache.Delete(userID)
		return err
	}
	s.cache.Set(userID, code)
	return nil
}

// Close stops the cache's background goroutines.
func (s *CachedStore) Close() {
	s.cache.Close()
}
