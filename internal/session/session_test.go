package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestLookupMissingSlot(t *testing.T) {
	s := New(1, 1, "pdf")
	_, err := Lookup[fileRef](s, "file")
	if !errors.Is(err, ErrSlotMissing) {
		t.Fatalf("expected ErrSlotMissing, got %v", err)
	}
	if _, err := Lookup[string](nil, "file"); !errors.Is(err, ErrSlotMissing) {
		t.Fatalf("nil session: expected ErrSlotMissing, got %v", err)
	}
}

func TestSetAndLookup(t *testing.T) {
	s := New(1, 2, "pdf")
	want := fileRef{ID: "F", Name: "doc.pdf"}
	if err := s.Set("file", want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := Lookup[fileRef](s, "file")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if !s.Has("file") {
		t.Fatal("expected slot to be present")
	}
	s.Delete("file")
	if s.Has("file") {
		t.Fatal("expected slot to be removed")
	}
}

func TestLookupTypeMismatch(t *testing.T) {
	s := New(1, 1, "pdf")
	if err := s.Set("n", "not a number"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, err := Lookup[int](s, "n")
	if err == nil || errors.Is(err, ErrSlotMissing) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()

	s := New(7, 7, "merge")
	s.State = "awaiting-merge-files"
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = s.Set("files", []string{"a"})

	loaded, ok, err := store.Load(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.Has("files") {
		t.Fatal("mutation after Save leaked into the store")
	}
	loaded.State = "changed"
	again, _, _ := store.Load(ctx, 7)
	if again.State != "awaiting-merge-files" {
		t.Fatalf("mutation after Load leaked into the store: %s", again.State)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()
	store.ttl = time.Minute

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Save(ctx, New(3, 3, "feedback")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := store.Load(ctx, 3); !ok {
		t.Fatal("expected fresh session")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Load(ctx, 3); ok {
		t.Fatal("expected idle session to be gone")
	}
	if n := store.purge(); n != 1 {
		t.Fatalf("purge removed %d sessions, want 1", n)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()

	_ = store.Save(ctx, New(9, 9, "pdf"))
	if err := store.Delete(ctx, 9); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, 9); ok {
		t.Fatal("expected session to be deleted")
	}
}
