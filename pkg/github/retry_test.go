package github

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayMonotoneAndCapped(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 10,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		delay := backoffDelay(cfg, attempt)
		assert.GreaterOrEqual(t, delay, prev, "delay for attempt %d must not shrink", attempt)
		assert.LessOrEqual(t, delay, cfg.MaxDelay, "delay for attempt %d must not exceed the cap", attempt)
		prev = delay
	}
}

func TestBackoffDelayExactValues(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  30 * time.Second,
	}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "first attempt", attempt: 0, expected: 100 * time.Millisecond},
		{name: "second attempt", attempt: 1, expected: 200 * time.Millisecond},
		{name: "third attempt", attempt: 2, expected: 400 * time.Millisecond},
		{name: "fifth attempt", attempt: 4, expected: 1600 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, backoffDelay(cfg, tt.attempt))
		})
	}
}

func TestJitteredBackoffBounds(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  30 * time.Second,
	}

	for i := 0; i < 50; i++ {
		base := backoffDelay(cfg, 3)
		jittered := jitteredBackoff(cfg, 3)
		assert.GreaterOrEqual(t, jittered, base)
		assert.LessOrEqual(t, jittered, base+base/10)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 1,
	})

	for i := 0; i < 3; i++ {
		assert.NoError(t, cb.allow())
		cb.recordFailure()
	}

	assert.ErrorIs(t, cb.allow(), ErrCircuitOpen)

	time.Sleep(70 * time.Millisecond)

	// Half-open probe succeeds and closes the breaker.
	assert.NoError(t, cb.allow())
	cb.recordSuccess()
	assert.NoError(t, cb.allow())
}
