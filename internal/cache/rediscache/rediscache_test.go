package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	_, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, c := newTestCache(t)
	now := time.Date(2025, 5, 1, 10, 0, 5, 0, time.UTC)
	rl := NewRateLimiter(c.Client()).WithClock(func() time.Time { return now })

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	key := rl.windowKey("rl:test", time.Minute)
	require.True(t, mr.Exists(key))
	require.Greater(t, mr.TTL(key), time.Duration(0))

	// следующее окно начинается с нуля, даже если запросы шли без перерыва
	now = now.Add(time.Minute)
	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestRateLimiter_WindowKeyExpires(t *testing.T) {
	mr, c := newTestCache(t)
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(c.Client()).WithClock(func() time.Time { return now })

	_, _, err := rl.Allow(context.Background(), "rl:ttl", 5, time.Minute)
	require.NoError(t, err)
	key := rl.windowKey("rl:ttl", time.Minute)

	mr.FastForward(time.Minute + 2*time.Second)
	require.False(t, mr.Exists(key))
}

func TestRateLimiter_NoBudget(t *testing.T) {
	_, c := newTestCache(t)
	rl := NewRateLimiter(c.Client())

	ok, n, err := rl.Allow(context.Background(), "rl:none", 0, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, n)
}

func TestLocker_AcquireRelease(t *testing.T) {
	mr, c := newTestCache(t)
	l := NewLocker(c.Client())
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "lock:sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "lock:sync", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists("lock:sync"))

	_, ok, err = l.Acquire(ctx, "lock:sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, c := newTestCache(t)
	l := NewLocker(c.Client())
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "lock:sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expired and was taken by another run
	mr.FastForward(2 * time.Minute)
	_, ok, err = l.Acquire(ctx, "lock:sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, release(ctx))
	require.True(t, mr.Exists("lock:sync"))
}
