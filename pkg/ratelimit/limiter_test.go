package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(limit int, period time.Duration) Config {
	return Config{Buckets: map[Bucket]Rate{
		BucketCore:   {Limit: limit, Period: period},
		BucketSearch: {Limit: limit, Period: period},
	}}
}

func TestLimiterInMemoryExhaustion(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(5, time.Minute))
	defer limiter.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := limiter.Allow(ctx, BucketCore)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, res.Limit)
		assert.Equal(t, 5-i-1, res.Remaining)
	}

	res, err := limiter.Allow(ctx, BucketCore)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "request past the window limit must be rejected")
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestLimiterBucketsAreIndependent(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(1, time.Minute))
	defer limiter.Close()

	ctx := context.Background()

	res, err := limiter.Allow(ctx, BucketCore)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, BucketSearch)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "search bucket must not share the core window")
}

func TestLimiterUnknownBucket(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(1, time.Minute))
	defer limiter.Close()

	_, err := limiter.Allow(context.Background(), Bucket("bogus"))
	assert.Error(t, err)
}

func TestTimeUntilNextNonIncreasing(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(2, 200*time.Millisecond))
	defer limiter.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, BucketCore)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	first := limiter.TimeUntilNext(BucketCore)
	assert.Greater(t, first, time.Duration(0))

	time.Sleep(50 * time.Millisecond)
	second := limiter.TimeUntilNext(BucketCore)
	assert.LessOrEqual(t, second, first, "wait time must not grow within the same window")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, time.Duration(0), limiter.TimeUntilNext(BucketCore), "wait must reach zero after the window resets")
}

func TestLimiterWindowReset(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(1, 50*time.Millisecond))
	defer limiter.Close()

	ctx := context.Background()

	res, err := limiter.Allow(ctx, BucketCore)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, BucketCore)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	time.Sleep(70 * time.Millisecond)

	res, err = limiter.Allow(ctx, BucketCore)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window must admit again after the period elapses")
}

func TestLimiterRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLimiter(NewRedisClientFrom(client), testConfig(3, time.Minute))
	defer limiter.Close()

	ctx := context.Background()

	allowed := 0
	for i := 0; i < 5; i++ {
		res, err := limiter.Allow(ctx, BucketCore)
		require.NoError(t, err)
		if res.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed, "redis window must admit exactly the configured limit")
}

func TestServerStateTracking(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(10, time.Minute))
	defer limiter.Close()

	_, ok := limiter.ServerState(BucketCore)
	assert.False(t, ok, "no state before any update")

	reset := time.Now().Add(time.Hour)
	limiter.UpdateState(BucketCore, 5000, 4900, reset, 100)

	state, ok := limiter.ServerState(BucketCore)
	assert.True(t, ok)
	assert.Equal(t, 5000, state.Limit)
	assert.Equal(t, 4900, state.Remaining)
	assert.Equal(t, 100, state.Used)
	assert.Equal(t, reset, state.ResetAt)
}

func TestServerStateRemainingNeverNegative(t *testing.T) {
	limiter := NewLimiter(&RedisClient{enabled: false}, testConfig(10, time.Minute))
	defer limiter.Close()

	limiter.UpdateState(BucketSearch, 30, -5, time.Now(), 35)

	state, ok := limiter.ServerState(BucketSearch)
	assert.True(t, ok)
	assert.Equal(t, 0, state.Remaining)
}
