package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ai-employee:ratelimit:"

// admitScript drops entries older than the window and records a new one only
// when fewer than limit remain. Denied calls leave the window untouched.
//
// KEYS[1] window set; ARGV: now (ms), window (ms), limit, member.
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`)

// RateLimiter caps how many actions of one kind run per window.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit actions per key within any window-long span.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (r *RateLimiter) Limit() int { return r.limit }

// Allow reports whether one more action under key fits in the window, and
// records it if so.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.limit <= 0 {
		return false, nil
	}
	args := []any{r.now().UnixMilli(), r.window.Milliseconds(), r.limit, uuid.NewString()}
	n, err := admitScript.Run(ctx, r.client, []string{rateLimitPrefix + key}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %q: %w", key, err)
	}
	return n == 1, nil
}

// Used counts the actions recorded under key in the current window.
func (r *RateLimiter) Used(ctx context.Context, key string) (int, error) {
	since := r.now().Add(-r.window).UnixMilli()
	n, err := r.client.ZCount(ctx, rateLimitPrefix+key, fmt.Sprintf("(%d", since), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit usage %q: %w", key, err)
	}
	return int(n), nil
}
