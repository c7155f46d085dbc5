package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// ToolCache stores raw upstream responses keyed by request URL. Misses and
// backend failures both read as cache misses.
type ToolCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// RedisToolCache caches upstream API responses in redis so repeated agent
// queries do not hammer the public endpoints.
type RedisToolCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisToolCache(client *redis.Client, ttl time.Duration) *RedisToolCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisToolCache{client: client, ttl: ttl}
}

func cacheKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "toolcache:" + hex.EncodeToString(sum[:])
}

func (c *RedisToolCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *RedisToolCache) Set(ctx context.Context, key string, value []byte) {
	// best effort, a failed write just means a future miss
	c.client.Set(ctx, cacheKey(key), value, c.ttl)
}
