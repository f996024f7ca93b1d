package github

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds the backoff policy for retryable failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns the standard policy for upstream API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// backoffDelay computes the un-jittered delay for an attempt:
// min(base * 2^attempt, maxDelay). Monotone non-decreasing in attempt.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	return delay
}

// jitteredBackoff adds up to 10% jitter on top of the exponential delay to
// avoid thundering herds. The jittered value may exceed MaxDelay by at most
// the jitter share.
func jitteredBackoff(cfg RetryConfig, attempt int) time.Duration {
	delay := backoffDelay(cfg, attempt)
	jitter := time.Duration(rand.Int63n(int64(delay/10) + 1))
	return delay + jitter
}
