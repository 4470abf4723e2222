package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisCacheFromClient(client)
}

type course struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestRedisCache_JSONRoundTripAndExpiry(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "courses:detail:1", course{ID: 1, Title: "Go"}, time.Minute))

	var got course
	require.NoError(t, c.GetJSON(ctx, "courses:detail:1", &got))
	assert.Equal(t, "Go", got.Title)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, "courses:detail:1", &got), ErrNotFound)
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	_, c := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"courses:list:1:10:", "courses:list:2:10:", "courses:detail:3"} {
		require.NoError(t, c.Set(ctx, k, "x", time.Minute))
	}

	require.NoError(t, c.DeletePrefix(ctx, "courses:list:"))

	ok, err := c.Exists(ctx, "courses:list:1:10:")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Exists(ctx, "courses:detail:3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_Counters(t *testing.T) {
	_, c := newTestCache(t)
	ctx := context.Background()

	n, err := c.Increment(ctx, "attempts")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, c.Expire(ctx, "attempts", time.Minute))
	ttl, err := c.TTL(ctx, "attempts")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}

func TestNopCache(t *testing.T) {
	var c Cache = NopCache{}
	var dest course

	assert.NoError(t, c.SetJSON(context.Background(), "k", course{}, time.Minute))
	assert.ErrorIs(t, c.GetJSON(context.Background(), "k", &dest), ErrNotFound)
}
