package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/earnx/earnx/pkg/logger"
)

const (
	// DefaultTTL is the default TTL for cached views
	DefaultTTL = 30 * time.Second

	// StaleTTL is the TTL of the stale copy used when the source is unreachable
	StaleTTL = 24 * time.Hour

	// KeyPrefix is the prefix of every key this cache writes
	KeyPrefix = "earnx:"

	staleSuffix = ":stale"
)

// Cache is a Redis-backed JSON cache for derived views
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewClient connects to the Redis server at url (redis://host:port/db); password overrides the URL's
func NewClient(url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	return redis.NewClient(opts), nil
}

// NewCache creates a new view cache
func NewCache(client *redis.Client, log *logger.Logger) *Cache {
	return NewCacheWithTTL(client, DefaultTTL, log)
}

// NewCacheWithTTL creates a new view cache with custom default TTL
func NewCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "cache"),
	}
}

// TTL returns the default entry lifetime
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get decodes the value at key into dest; it reports false on a miss
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.get(ctx, KeyPrefix+key, dest)
}

// Set stores value at key; a zero ttl uses the default
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.set(ctx, KeyPrefix+key, value, ttl)
}

// SetStale stores the long-lived fallback copy of key
func (c *Cache) SetStale(ctx context.Context, key string, value interface{}) error {
	return c.set(ctx, KeyPrefix+key+staleSuffix, value, StaleTTL)
}

// GetStale reads the fallback copy of key
func (c *Cache) GetStale(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.get(ctx, KeyPrefix+key+staleSuffix, dest)
}

// Delete removes keys (fresh copies only)
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = KeyPrefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.Error("cache error", "operation", "delete", "keys", keys, "error", err)
		return fmt.Errorf("failed to delete cached views: %w", err)
	}
	return nil
}

// Clear removes every key starting with prefix
func (c *Cache) Clear(ctx context.Context, prefix string) error {
	pattern := fmt.Sprintf("%s%s*", KeyPrefix, prefix)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}

	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	return iter.Err()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "key", key, "error", err)
		return false, fmt.Errorf("failed to get cached view: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached view: %w", err)
	}

	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "key", key, "error", err)
		return fmt.Errorf("failed to set cached view: %w", err)
	}

	return nil
}
