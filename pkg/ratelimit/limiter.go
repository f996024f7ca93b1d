// Package ratelimit tracks the shared API quota across the pipeline. It keeps
// a local sliding-window counter per quota bucket (Redis-backed when
// configured, in-memory otherwise) and mirrors the server-reported rate-limit
// state so every network-touching component sees the same back-pressure
// signal.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
)

// Bucket names one upstream quota pool.
type Bucket string

const (
	// BucketCore covers repository, content, and metadata endpoints.
	BucketCore Bucket = "core"
	// BucketSearch covers the search endpoints, which carry a much
	// tighter quota.
	BucketSearch Bucket = "search"
)

// Rate is the local window configuration for one bucket.
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result reports the outcome of one admission check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// State mirrors the server-reported quota for one bucket.
// Remaining is capped at the observed server value and never goes negative.
type State struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Used      int       `json:"used"`
}

// Config holds the per-bucket window settings.
type Config struct {
	Buckets map[Bucket]Rate
}

// DefaultConfig mirrors the upstream platform's published quotas:
// 5000 core requests per hour, 30 search requests per minute.
func DefaultConfig() Config {
	return Config{
		Buckets: map[Bucket]Rate{
			BucketCore:   {Limit: 5000, Period: time.Hour},
			BucketSearch: {Limit: 30, Period: time.Minute},
		},
	}
}

// Limiter provides per-bucket admission control plus shared server-state
// bookkeeping.
type Limiter struct {
	config Config

	redisClient  *RedisClient
	redisLimiter *redis_rate.Limiter
	fallback     *slidingWindow

	stateMu sync.RWMutex
	state   map[Bucket]State
}

// NewLimiter creates a limiter. The Redis client may be disabled; the
// in-memory window then carries all admission decisions.
func NewLimiter(redisClient *RedisClient, config Config) *Limiter {
	if len(config.Buckets) == 0 {
		config = DefaultConfig()
	}

	l := &Limiter{
		config:      config,
		redisClient: redisClient,
		fallback:    newSlidingWindow(),
		state:       make(map[Bucket]State),
	}

	if redisClient != nil && redisClient.IsEnabled() {
		l.redisLimiter = redis_rate.NewLimiter(redisClient.Client())
		slog.Info("redis-backed rate limiter initialized")
	}

	return l
}

// Allow checks and consumes one admission slot for the bucket.
func (l *Limiter) Allow(ctx context.Context, bucket Bucket) (Result, error) {
	rate, ok := l.config.Buckets[bucket]
	if !ok {
		return Result{}, fmt.Errorf("ratelimit: unknown bucket %q", bucket)
	}

	if l.redisLimiter != nil {
		res, err := l.allowRedis(ctx, bucket, rate)
		if err == nil {
			return res, nil
		}
		slog.Warn("redis rate limit check failed, using in-memory window", "bucket", bucket, "error", err)
	}

	return l.fallback.allow(string(bucket), rate.Limit, rate.Period), nil
}

func (l *Limiter) allowRedis(ctx context.Context, bucket Bucket, r Rate) (Result, error) {
	res, err := l.redisLimiter.Allow(ctx, "ratelimit:"+string(bucket), redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	})
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit check: %w", err)
	}

	return Result{
		Allowed:    res.Allowed > 0,
		Limit:      r.Limit,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// TimeUntilNext reports how long until the bucket admits another request,
// without consuming a slot. Zero when the window has room.
func (l *Limiter) TimeUntilNext(bucket Bucket) time.Duration {
	rate, ok := l.config.Buckets[bucket]
	if !ok {
		return 0
	}
	// Redis admissions are probed lazily via Allow; the local window is the
	// authority for wait estimation in both modes.
	return l.fallback.timeUntilNext(string(bucket), rate.Limit, rate.Period)
}

// UpdateState records the server-reported quota headers after a call.
// A negative remaining is clamped to zero.
func (l *Limiter) UpdateState(bucket Bucket, limit, remaining int, resetAt time.Time, used int) {
	if remaining < 0 {
		remaining = 0
	}
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.state[bucket] = State{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		Used:      used,
	}
}

// ServerState returns the last server-reported quota snapshot for a bucket.
func (l *Limiter) ServerState(bucket Bucket) (State, bool) {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	s, ok := l.state[bucket]
	return s, ok
}

// Close releases the Redis connection if one is held.
func (l *Limiter) Close() error {
	if l.redisClient != nil {
		return l.redisClient.Close()
	}
	return nil
}
