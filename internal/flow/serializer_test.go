package flow

import (
	"context"
	"testing"
	"time"
)

func TestSerializerKeepsOrder(t *testing.T) {
	s := NewSerializer(time.Minute)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := s.Do(context.Background(), 1, func(context.Context) { got = append(got, i) }); err != nil {
			t.Fatalf("do: %v", err)
		}
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order broken: %v", got)
		}
	}
}

func TestSerializerSkipsCancelledWork(t *testing.T) {
	s := NewSerializer(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	if err := s.Do(ctx, 1, func(context.Context) { ran = true }); err == nil {
		t.Fatal("expected context error")
	}
	if ran {
		t.Fatal("cancelled work must not run")
	}
}

func TestSerializerActorExitsWhenIdle(t *testing.T) {
	s := NewSerializer(10 * time.Millisecond)
	if err := s.Do(context.Background(), 3, func(context.Context) {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for s.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("actor still alive: %d", s.Active())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSerializerWaitsForStartedWork(t *testing.T) {
	s := NewSerializer(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	finished := false
	err := s.Do(ctx, 2, func(context.Context) {
		cancel()
		time.Sleep(5 * time.Millisecond)
		finished = true
	})
	if err != nil {
		t.Fatalf("started work must report success, got %v", err)
	}
	if !finished {
		t.Fatal("Do returned before the work finished")
	}
}
