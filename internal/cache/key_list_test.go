package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dani-ai/dani/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisKeyListCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisKeyListCache(rdb, ttl), mr
}

func TestKeyListCache_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.False(t, ok)

	keys := []model.APIKey{{ID: "1", Name: "git", Value: "dani-aaaaaaaaaaaaa", Usage: 3, RequestLimit: 10, UserID: "owner-1"}}
	require.NoError(t, c.Set(ctx, "owner-1", keys))

	got, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, keys, got)

	_, ok, err = c.Get(ctx, "owner-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyListCache_EmptyListIsAHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "owner-1", []model.APIKey{}))

	got, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestKeyListCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "owner-1", []model.APIKey{{ID: "1"}}))
	assert.True(t, mr.Exists("keys:owner:owner-1"))

	require.NoError(t, c.Invalidate(ctx, "owner-1"))
	assert.False(t, mr.Exists("keys:owner:owner-1"))

	require.NoError(t, c.Invalidate(ctx, "never-cached"))
}

func TestKeyListCache_Expires(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "owner-1", []model.APIKey{{ID: "1"}}))
	assert.Equal(t, 30*time.Second, mr.TTL("keys:owner:owner-1"))

	mr.FastForward(31 * time.Second)

	_, ok, err := c.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyListCache_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set("keys:owner:owner-1", "not json"))

	_, ok, err := c.Get(context.Background(), "owner-1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisKeyListCache_DefaultTTL(t *testing.T) {
	c := NewRedisKeyListCache(nil, 0)
	assert.Equal(t, 5*time.Minute, c.ttl)
}
