package infrastructure

import (
	"context"
	"fmt"
	"time"

	"pumprug/domain/interfaces"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowLua trims expired entries, counts what remains and admits
// the request if the window still has room. Runs atomically so concurrent
// callers cannot both take the last slot.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, math.ceil(window / 1000))
    return {1, count + 1}
end
return {0, count}
`

// RateLimiter implements a sliding-window rate limit backed by redis
// sorted sets and an atomic Lua script
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given client
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{
		rdb:           rdb,
		slidingWindow: redis.NewScript(slidingWindowLua),
	}
}

func rateLimitKey(key string) string {
	return "pumprug:ratelimit:" + key
}

// Allow checks whether a request for the given key is permitted under the
// sliding window. Returns true and counts the request if it is allowed,
// false if the limit has been reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()

	// Each request gets its own set member; requests sharing a clock
	// reading must still occupy separate window slots
	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		now,
		window.Microseconds(),
		limit,
		uuid.New().String(),
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit %s: %w", key, err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("unexpected rate limit result length %d for %s", len(result), key)
	}

	return result[0] == 1, nil
}

var _ interfaces.RateLimiter = (*RateLimiter)(nil)
