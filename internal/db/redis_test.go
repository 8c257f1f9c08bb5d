package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	s := miniredis.RunT(t)
	return s, &RedisStore{Client: redis.NewClient(&redis.Options{Addr: s.Addr()})}
}

func TestMarkOnce(t *testing.T) {
	s, store := setupTestRedis(t)
	ctx := context.Background()

	first, err := store.MarkOnce(ctx, "k", time.Hour)
	require.NoError(t, err)
	second, err := store.MarkOnce(ctx, "k", time.Hour)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, time.Hour, s.TTL("k"))

	s.FastForward(2 * time.Hour)
	again, err := store.MarkOnce(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, again, "key should be markable after expiry")
}

func TestGeneration(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	gen, err := store.Generation(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	next, err := store.BumpGeneration(ctx, "gen", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	gen, err = store.Generation(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestMarkInGeneration(t *testing.T) {
	s, store := setupTestRedis(t)
	ctx := context.Background()

	gen, ok, err := store.MarkInGeneration(ctx, "p:gen", "p", "c1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)
	assert.True(t, ok)
	assert.True(t, s.Exists("p:0:c1"))
	assert.Greater(t, s.TTL("p:0:c1"), time.Duration(0))

	_, ok, err = store.MarkInGeneration(ctx, "p:gen", "p", "c1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.BumpGeneration(ctx, "p:gen", time.Hour)
	require.NoError(t, err)
	gen, ok, err = store.MarkInGeneration(ctx, "p:gen", "p", "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	assert.True(t, ok)
	assert.True(t, s.Exists("p:1:c1"))
	assert.Equal(t, time.Duration(0), s.TTL("p:1:c1"))
}

func TestListRoundTrip(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	got, err := store.GetList(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.PutList(ctx, "liked", []string{"r1", "r2"}))
	got, err = store.GetList(ctx, "liked")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, got)
}

func TestGetListCorrupt(t *testing.T) {
	s, store := setupTestRedis(t)
	require.NoError(t, s.Set("bad", "{nope"))
	_, err := store.GetList(context.Background(), "bad")
	assert.Error(t, err)
}
