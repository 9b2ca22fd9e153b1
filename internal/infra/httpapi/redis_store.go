package httpapi

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore on a shared Redis counter,
// so the fixed window holds across multiple running instances.
type RedisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Allow(c echo.Context, key string, limit int, window time.Duration) (bool, int, error) {
	ctx := c.Request().Context()
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(window.Seconds()))

	count, err := s.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// First hit opens the window; the expiry bounds stale buckets.
		if err := s.client.Expire(ctx, bucket, window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > int64(limit) {
		ttl, err := s.client.TTL(ctx, bucket).Result()
		if err != nil {
			return false, 0, err
		}
		return false, int(ttl.Seconds()), nil
	}
	return true, 0, nil
}
