package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/branchledger/pkg/redis"
)

func newLockStore(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return mr, redis.NewFromClient(raw)
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	mr, store := newLockStore(t)
	key := store.LockKey("maintenance:test")

	first, err := NewRedisLock(store, key, "worker-a", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, key, "worker-b", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// not the holder; must leave the key alone
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists(key))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	mr, store := newLockStore(t)
	key := store.LockKey("maintenance:takeover")

	lock, err := NewRedisLock(store, key, "worker-a", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(key, "worker-b/other"))

	require.NoError(t, lock.Release(ctx))
	value, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "worker-b/other", value)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, store := newLockStore(t)
	if _, err := NewRedisLock(nil, "k", "", 0); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewRedisLock(store, "", "", 0); err == nil {
		t.Fatal("expected error for empty key")
	}
	lock, err := NewRedisLock(store, "k", "", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
	assert.Equal(t, "unknown", lock.holder)
}
