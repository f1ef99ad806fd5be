package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := Session{ID: "s1", UserID: "u1", Token: "tok", Metadata: map[string]string{"app": "demo"}}
	if err := store.Put(ctx, sess, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	if got.UserID != "u1" || got.Metadata["app"] != "demo" {
		t.Fatalf("session = %+v", got)
	}
	if got.ExpiresAt.IsZero() {
		t.Fatal("expiry not set")
	}

	if err := store.Put(ctx, sess, 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	ctx := context.Background()

	if err := store.Put(ctx, Session{ID: "s1"}, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, "s1"); ok {
		t.Fatal("expired session returned")
	}
	// The expired read also evicts.
	store.mu.RLock()
	_, present := store.sessions["s1"]
	store.mu.RUnlock()
	if present {
		t.Fatal("expired session not evicted on read")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	ctx := context.Background()

	if err := store.Put(ctx, Session{ID: "old"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, Session{ID: "fresh"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	current = current.Add(30 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := store.Get(ctx, "fresh"); !ok {
		t.Fatal("fresh session swept")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, Session{ID: "s1"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1"); ok {
		t.Fatal("deleted session returned")
	}
}
