package github

import (
	"fmt"
	"sync"
	"time"
)

// breakerState is the circuit breaker state machine position.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreakerConfig tunes the breaker guarding upstream calls.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // wait before probing again
	SuccessThreshold int           // successes in half-open before closing
}

// circuitBreaker trips after repeated upstream failures so a dead upstream
// does not burn the retry budget of every sibling call.
type circuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       breakerState
	failures    int
	successes   int
	nextAttempt time.Time
}

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open")

func newCircuitBreaker(config CircuitBreakerConfig) *circuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 3
	}
	return &circuitBreaker{config: config}
}

// allow reports whether a call may proceed, transitioning open -> half-open
// once the recovery timeout has elapsed.
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if time.Now().Before(cb.nextAttempt) {
			return ErrCircuitOpen
		}
		cb.state = stateHalfOpen
		cb.successes = 0
	}
	return nil
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == stateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = stateClosed
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.successes = 0
	if cb.state == stateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = stateOpen
		cb.nextAttempt = time.Now().Add(cb.config.RecoveryTimeout)
	}
}
