package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared across API instances.
// Keys are per caller identity (IP or patient ID) so one clinic's burst
// cannot consume another's budget.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow increments the caller's counter for the current window and
// reports whether the request is within the limit. On Redis errors it
// fails open: booking availability matters more than throttling.
func (rl *RateLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", identity, time.Now().Unix()/int64(rl.window.Seconds()))

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit check: %w", err)
	}

	return incr.Val() <= int64(rl.limit), nil
}
