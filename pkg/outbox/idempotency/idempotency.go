// Package idempotency makes event handlers run at most once per consumer,
// keyed by event id in redis.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/pkg/redis"
)

const processedScope = "evt:processed:"

// Manager claims bl:idempotency:evt:processed:<consumer>:<event_id> with
// SETNX. The stored value is the claim time.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager accepts a zero ttl, meaning claims never expire.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim marks the event as taken for consumer. It reports false when someone
// already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339Nano), m.ttl)
}

// Release forgets a claim so the event can be handled again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// Run calls fn unless the event was already claimed. When fn fails the claim
// is released so redelivery retries. The boolean reports whether fn ran.
func (m *Manager) Run(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	claimed, err := m.Claim(ctx, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		return false, nil
	}
	runErr := fn(ctx)
	if runErr == nil {
		return true, nil
	}
	if err := m.Release(ctx, consumer, eventID); err != nil {
		return true, errors.Join(runErr, fmt.Errorf("release idempotency claim: %w", err))
	}
	return true, runErr
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(processedScope+consumer, eventID.String()), nil
}
