package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/branchledger/pkg/redis"
)

func newManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	manager, err := NewManager(store, ttl)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	manager.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return manager, mr
}

func processedKey(eventID uuid.UUID) string {
	return "bl:idempotency:evt:processed:followup-worker:" + eventID.String()
}

func TestClaimAndRelease(t *testing.T) {
	manager, mr := newManager(t, 24*time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	first, err := manager.Claim(ctx, "followup-worker", eventID)
	if err != nil || !first {
		t.Fatalf("first claim: ok=%v err=%v", first, err)
	}
	if got, _ := mr.Get(processedKey(eventID)); got != "2025-03-01T09:00:00Z" {
		t.Fatalf("unexpected claim value %q", got)
	}
	if ttl := mr.TTL(processedKey(eventID)); ttl != 24*time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	second, err := manager.Claim(ctx, "followup-worker", eventID)
	if err != nil || second {
		t.Fatalf("second claim should lose: ok=%v err=%v", second, err)
	}
	other, err := manager.Claim(ctx, "audit-worker", eventID)
	if err != nil || !other {
		t.Fatalf("claims are per consumer: ok=%v err=%v", other, err)
	}

	if err := manager.Release(ctx, "followup-worker", eventID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(processedKey(eventID)) {
		t.Fatal("claim should be gone after release")
	}
}

func TestClaimValidation(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	if _, err := manager.Claim(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected consumer name error")
	}
	if _, err := manager.Claim(context.Background(), "followup-worker", uuid.Nil); err == nil {
		t.Fatal("expected event id error")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := NewManager(redis.NewFromClient(nil), -time.Second); err == nil {
		t.Fatal("expected ttl error")
	}
}

func TestClaimSurfacesStoreErrors(t *testing.T) {
	manager, mr := newManager(t, time.Hour)
	mr.SetError("READONLY")
	if _, err := manager.Run(context.Background(), "followup-worker", uuid.New(), func(context.Context) error {
		t.Fatal("handler must not run without a claim")
		return nil
	}); err == nil {
		t.Fatal("expected store error")
	}
}

func TestRun(t *testing.T) {
	manager, mr := newManager(t, time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	ran, err := manager.Run(ctx, "followup-worker", eventID, func(context.Context) error {
		return errors.New("insert failed")
	})
	if err == nil || !ran {
		t.Fatalf("expected handler error to surface, ran=%v err=%v", ran, err)
	}
	if mr.Exists(processedKey(eventID)) {
		t.Fatal("failed handler must release its claim")
	}

	calls := 0
	for range 2 {
		if _, err := manager.Run(ctx, "followup-worker", eventID, func(context.Context) error {
			calls++
			return nil
		}); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one successful run, got %d", calls)
	}
}
