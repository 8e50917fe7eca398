// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/coursemix/coursemix/internal/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int) (*ratelimit.RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisLimiter(client, "send:", limit, 15*time.Minute), mr
}

func TestRedisLimiter_Allow(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, limiter.Allow(ctx, "verification:student@brocku.ca"))
	}
	require.ErrorIs(t, limiter.Allow(ctx, "verification:student@brocku.ca"), ratelimit.ErrLimited)

	// Keys are independent.
	require.NoError(t, limiter.Allow(ctx, "reset:student@brocku.ca"))
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "k"))
	require.ErrorIs(t, limiter.Allow(ctx, "k"), ratelimit.ErrLimited)

	assert.Equal(t, 15*time.Minute, mr.TTL("send:k"))
	mr.FastForward(16 * time.Minute)

	require.NoError(t, limiter.Allow(ctx, "k"))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.Close()

	assert.NoError(t, limiter.Allow(context.Background(), "k"))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ratelimit.NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = ratelimit.NewClient(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	var l ratelimit.Limiter = ratelimit.Noop{}
	for range 100 {
		require.NoError(t, l.Allow(context.Background(), "k"))
	}
}
