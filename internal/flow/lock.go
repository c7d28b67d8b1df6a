package flow

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned when another instance holds the user's lock.
var ErrLocked = errors.New("flow: user is locked by another worker")

// Locker guards a user across bot instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RedisLocker implements Locker with SET NX and a token-checked delete.
type RedisLocker struct {
	cli     redis.Cmdable
	retries int
	wait    time.Duration
}

// NewRedisLocker builds a Locker on a go-redis client.
func NewRedisLocker(cli redis.Cmdable) *RedisLocker {
	return &RedisLocker{cli: cli, retries: 20, wait: 50 * time.Millisecond}
}

// TryLock acquires key for ttl, retrying briefly while another holder has it.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		lastErr = err
		t := time.NewTimer(l.wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrLocked
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases key only if it still holds token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
