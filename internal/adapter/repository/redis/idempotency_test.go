package redis

import (
	"context"
	"testing"
	"time"

	"github.com/iho/possync/internal/usecase"
)

func TestIdempotencyStore_CheckAndSetExisting(t *testing.T) {
	client, _ := newTestRedisClient(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if err := client.Set(ctx, store.prefix+"key", "cached", time.Minute).Err(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	exists, resp, err := store.CheckAndSet(ctx, "key", nil, time.Minute)
	if err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}
	if !exists || string(resp) != "cached" {
		t.Fatalf("expected existing cached response, got exists=%v resp=%s", exists, resp)
	}
}

func TestIdempotencyStore_CheckAndSetLocksNewKey(t *testing.T) {
	client, mr := newTestRedisClient(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	exists, resp, err := store.CheckAndSet(ctx, "upload-1", nil, time.Minute)
	if err != nil || exists || resp != nil {
		t.Fatalf("unexpected result: exists=%v resp=%v err=%v", exists, resp, err)
	}

	val, err := mr.Get(store.prefix + "upload-1")
	if err != nil || val != usecase.IdempotencyInFlight {
		t.Fatalf("expected in-flight placeholder, got val=%s err=%v", val, err)
	}

	exists, resp, err = store.CheckAndSet(ctx, "upload-1", nil, time.Minute)
	if err != nil || !exists || string(resp) != usecase.IdempotencyInFlight {
		t.Fatalf("expected concurrent claim to see placeholder, got exists=%v resp=%s err=%v", exists, resp, err)
	}
}

func TestIdempotencyStore_UpdateAndRelease(t *testing.T) {
	client, mr := newTestRedisClient(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	if _, _, err := store.CheckAndSet(ctx, "handoff-9", nil, time.Minute); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.Update(ctx, "handoff-9", []byte(`{"ok":true}`), time.Minute); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	exists, resp, err := store.CheckAndSet(ctx, "handoff-9", nil, time.Minute)
	if err != nil || !exists || string(resp) != `{"ok":true}` {
		t.Fatalf("expected stored response, got exists=%v resp=%s err=%v", exists, resp, err)
	}

	if err := store.Release(ctx, "handoff-9"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists(store.prefix + "handoff-9") {
		t.Fatalf("expected key to be released")
	}
}
