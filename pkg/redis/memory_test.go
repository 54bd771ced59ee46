package redis

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	if err := store.Set(ctx, "webhook:evt_1", "1", 24*time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := store.TTL("webhook:evt_1"); got != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %v", got)
	}
	ok, _ := store.Exists(ctx, "webhook:evt_1")
	if !ok {
		t.Fatal("expected key before expiry")
	}

	now = now.Add(24 * time.Hour)
	ok, _ = store.Exists(ctx, "webhook:evt_1")
	if ok {
		t.Fatal("expected key to expire")
	}
	if _, err := store.Get(ctx, "webhook:evt_1"); !IsMiss(err) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryStoreCountersKeepTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Incr(ctx, "cod:active:u1"); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if err := store.Expire(ctx, "cod:active:u1", time.Hour); err != nil {
		t.Fatalf("expire: %v", err)
	}
	count, err := store.Incr(ctx, "cod:active:u1")
	if err != nil || count != 2 {
		t.Fatalf("unexpected count=%d err=%v", count, err)
	}
	if store.TTL("cod:active:u1") <= 0 {
		t.Fatal("incr should not clear ttl")
	}
	count, _ = store.Decr(ctx, "cod:active:u1")
	if count != 1 {
		t.Fatalf("expected 1 after decr, got %d", count)
	}
}

func TestMemoryStoreRejectsNonIntegerCounters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "k", "abc", 0)
	if _, err := store.Incr(ctx, "k"); err == nil {
		t.Fatal("expected error incrementing non-integer")
	}
}

func TestMemoryStoreSetNXAndDelByPattern(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, _ := store.SetNX(ctx, "lock:cron:local", "a", time.Minute)
	second, _ := store.SetNX(ctx, "lock:cron:local", "b", time.Minute)
	if !first || second {
		t.Fatalf("expected only first setnx to win, got %v %v", first, second)
	}

	_ = store.Set(ctx, "cart:u1", "x", 0)
	_ = store.Set(ctx, "cart:u2", "x", 0)
	removed, err := store.DelByPattern(ctx, "cart:*")
	if err != nil || removed != 2 {
		t.Fatalf("unexpected removal count=%d err=%v", removed, err)
	}
	if ok, _ := store.Exists(ctx, "lock:cron:local"); !ok {
		t.Fatal("unrelated key removed")
	}
}
