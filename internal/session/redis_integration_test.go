//go:build integration

package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	cli := redis.NewClient(&redis.Options{Addr: addr})
	defer cli.Close()

	ctx := context.Background()
	store := NewRedisStore(cli, "pdfbot-test", time.Minute)

	s := New(42, 42, "pdf")
	s.State = "awaiting-crop-type"
	if err := s.Set("file", "F"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.State != s.State {
		t.Fatalf("state = %s, want %s", got.State, s.State)
	}
	if v, _ := Lookup[string](got, "file"); v != "F" {
		t.Fatalf("file slot = %q", v)
	}
	ttl := cli.TTL(ctx, "pdfbot-test:session:42").Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	if err := store.Delete(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, 42); ok {
		t.Fatal("expected session to be gone")
	}
}
