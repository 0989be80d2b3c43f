package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "email-reachability:ratelimit:"

// the first INCR of a window starts its expiry; PTTL reports what is left
const fixedWindowLuaScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// RedisLimiter shares fixed windows across processes through Redis.
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	window time.Duration
	max    int
}

func NewRedis(client redis.Scripter, w time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(fixedWindowLuaScript),
		window: w,
		max:    max,
	}
}

// NewRedisFromURL connects to redisURL and verifies the connection.
func NewRedisFromURL(ctx context.Context, redisURL string, w time.Duration, max int) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	slog.InfoContext(ctx, "rate limiter connected to redis", "addr", opts.Addr)
	return NewRedis(client, w, max), nil
}

func (l *RedisLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	res, err := l.script.Run(ctx, l.client, []string{keyPrefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	resetAt := time.Now().Add(time.Duration(res[1]) * time.Millisecond)
	return decide(int(res[0]), l.max, resetAt), nil
}
