package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalBucketsBurstThenDeny(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	buckets := NewLocalBuckets(0.5, 3)
	buckets.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := buckets.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i+1)
	}

	res, err := buckets.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)

	other, err := buckets.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(2 * time.Second)
	res, err = buckets.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalBucketsSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	buckets := NewLocalBuckets(1, 2)
	buckets.now = func() time.Time { return now }

	_, _ = buckets.Allow(context.Background(), "a")
	_, _ = buckets.Allow(context.Background(), "b")
	require.Equal(t, 2, buckets.size())

	now = now.Add(time.Hour)
	_, _ = buckets.Allow(context.Background(), "b")
	buckets.Sweep()
	assert.Equal(t, 1, buckets.size())
}

func TestTokenBucketOnRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := bucket.Allow(ctx, "billing:verify:user-1", 0.01, 5)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i+1)
		assert.Equal(t, 5, res.Limit)
	}

	res, err := bucket.Allow(ctx, "billing:verify:user-1", 0.01, 5)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, 90*time.Second)

	other, err := bucket.Allow(ctx, "billing:verify:user-2", 0.01, 5)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	assert.Equal(t, 4, other.Remaining)

	assert.True(t, srv.Exists("billing:verify:user-1"))
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, errInvalidBucket)

	var missing *TokenBucket
	_, err = missing.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()

	limiter := &redisLimiter{bucket: NewTokenBucket(client), prefix: keyVerify, rate: 1, burst: 1, log: zap.NewNop()}
	res, err := limiter.Allow(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
