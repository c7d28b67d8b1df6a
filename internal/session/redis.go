package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps sessions in Redis so several bot instances share them.
// Every Save refreshes the key TTL, which doubles as the idle timeout.
type RedisStore struct {
	cli    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a Store on top of a go-redis client.
func NewRedisStore(cli redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisStore{cli: cli, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s:session:%d", r.prefix, userID)
}

// Load fetches and decodes the user's session.
func (r *RedisStore) Load(ctx context.Context, userID int64) (*Session, bool, error) {
	data, err := r.cli.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("session: decode: %w", err)
	}
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	return &s, true, nil
}

// Save encodes s and stores it with the configured TTL.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	cp := s.Clone()
	cp.UpdatedAt = time.Now()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := r.cli.Set(ctx, r.key(s.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Delete removes the user's session key.
func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.cli.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
