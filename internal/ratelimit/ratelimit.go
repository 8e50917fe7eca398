// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit throttles code emails per address.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned when the caller exceeded its allowance.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter counts events per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Noop never limits.
type Noop struct{}

func (Noop) Allow(context.Context, string) error { return nil }

// The window starts with the first event for a key.
var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter keeps fixed-window counters in Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows limit events per key in each window.
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Allow increments the counter for key and returns ErrLimited once the
// count passes the limit. Redis failures are logged and let the call through.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	cacheKey := l.prefix + key

	count, err := allowScript.Run(ctx, l.client, []string{cacheKey}, l.window.Milliseconds()).Int64()
	if err != nil {
		slog.Warn("ratelimit_unavailable", "key", cacheKey, "error", err)
		return nil
	}

	if count > l.limit {
		return ErrLimited
	}
	return nil
}
