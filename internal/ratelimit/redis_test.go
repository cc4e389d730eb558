package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	clock := newFakeClock()
	l := NewRedisLimiter(client, "test:", clock.Now)
	ctx := context.Background()
	t0 := clock.Now()

	for i := 1; i <= 5; i++ {
		res, err := l.Check(ctx, loginPolicy, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 5-i, res.Remaining)
		clock.Advance(time.Minute)
	}

	res, err := l.Check(ctx, loginPolicy, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, t0.Add(15*time.Minute).UnixMilli(), res.ResetAt.UnixMilli())

	assert.True(t, mr.Exists("test:login:1.2.3.4"))

	clock.Advance(15 * time.Minute)
	res, err = l.Check(ctx, loginPolicy, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestRedisLimiter_SameMillisecondCountsTwice(t *testing.T) {
	t.Parallel()

	client, _ := setupTestRedis(t)
	clock := newFakeClock()
	l := NewRedisLimiter(client, "", clock.Now)
	p := Policy{Scope: "s", Interval: time.Minute, Max: 2}

	for i := 0; i < 2; i++ {
		res, err := l.Check(context.Background(), p, "c")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Check(context.Background(), p, "c")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestRedisLimiter_UnavailableReturnsError(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	mr.Close()

	l := NewRedisLimiter(client, "", nil)
	res, err := l.Check(context.Background(), loginPolicy, "c")
	assert.Error(t, err)
	assert.True(t, res.Allowed)
}
