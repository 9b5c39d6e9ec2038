package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter on a Redis instance using INCR/EXPIRE/TTL.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps an existing client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Ping verifies connectivity at startup.
func (c *RedisCounter) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Incr bumps the window counter. The expiry is armed only when the key is
// fresh; later increments ride out the original window.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl < 0 {
		// Counter exists without expiry (a prior EXPIRE was lost); re-arm so
		// the window cannot leak forever.
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("re-expire %s: %w", key, err)
		}
		ttl = window
	}
	return count, ttl, nil
}
