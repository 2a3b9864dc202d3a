package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dani-ai/dani/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyListPrefix = "keys:owner:"

// KeyListCache holds each owner's key list between mutations.
type KeyListCache interface {
	Get(ctx context.Context, ownerID string) ([]model.APIKey, bool, error)
	Set(ctx context.Context, ownerID string, keys []model.APIKey) error
	Invalidate(ctx context.Context, ownerID string) error
}

type RedisKeyListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisKeyListCache stores lists as JSON blobs; ttl <= 0 defaults to 5m.
func NewRedisKeyListCache(rdb *redis.Client, ttl time.Duration) *RedisKeyListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisKeyListCache{rdb: rdb, ttl: ttl}
}

var _ KeyListCache = (*RedisKeyListCache)(nil)

func keyListKey(ownerID string) string { return keyListPrefix + ownerID }

func (c *RedisKeyListCache) Get(ctx context.Context, ownerID string) ([]model.APIKey, bool, error) {
	b, err := c.rdb.Get(ctx, keyListKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var keys []model.APIKey
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

func (c *RedisKeyListCache) Set(ctx context.Context, ownerID string, keys []model.APIKey) error {
	b, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyListKey(ownerID), b, c.ttl).Err()
}

func (c *RedisKeyListCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.rdb.Del(ctx, keyListKey(ownerID)).Err()
}
