package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/possync/internal/usecase"
)

const cachePrefix = "possync:ref:"

// Cache implements usecase.Cache on Redis strings. It backs the reference
// resolver's natural-key lookups.
type Cache struct {
	client redis.Cmdable
	prefix string
}

// NewCache creates a new Cache.
func NewCache(client redis.Cmdable) *Cache {
	return &Cache{client: client, prefix: cachePrefix}
}

// Get returns usecase.ErrCacheMiss when key is absent.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", usecase.ErrCacheMiss
	}
	return val, err
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
