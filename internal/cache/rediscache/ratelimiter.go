package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter spends a request budget per fixed window. Windows are aligned
// to wall time, so every worker sharing the Redis counts against the same key.
type RateLimiter struct {
	c   *redis.Client
	now func() time.Time
}

func NewRateLimiter(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c, now: time.Now}
}

func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Allow spends one request from the current window of key.
// Возвращает (allowed, currentCount). limit <= 0 means no budget.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	windowKey := rl.windowKey(key, window)

	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	// ключ окна живет чуть дольше самого окна
	pipe.PExpire(ctx, windowKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) windowKey(key string, window time.Duration) string {
	slot := rl.now().UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("%s:%d", key, slot)
}
