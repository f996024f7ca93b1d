package ratelimit

import (
	"sync"
	"time"
)

// slidingWindow is the in-memory fallback counter: a timestamp log per key,
// pruned on every check. The mutex is required because callers may run on
// multiple goroutines.
type slidingWindow struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

func newSlidingWindow() *slidingWindow {
	return &slidingWindow{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// prune drops events older than the window. Caller holds the lock.
func (w *slidingWindow) prune(key string, period time.Duration, now time.Time) []time.Time {
	cutoff := now.Add(-period)
	kept := w.events[key][:0]
	for _, ts := range w.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.events[key] = kept
	return kept
}

// allow records and admits the event when the window has room.
func (w *slidingWindow) allow(key string, limit int, period time.Duration) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	live := w.prune(key, period, now)

	if len(live) >= limit {
		retryAfter := live[0].Add(period).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    live[0].Add(period),
			RetryAfter: retryAfter,
		}
	}

	w.events[key] = append(live, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(live) - 1,
		ResetAt:   now.Add(period),
	}
}

// timeUntilNext returns how long until the next event would be admitted
// without recording anything. Zero when the window has room. The value is
// non-increasing as time passes within the same window.
func (w *slidingWindow) timeUntilNext(key string, limit int, period time.Duration) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	live := w.prune(key, period, now)

	if len(live) < limit {
		return 0
	}
	wait := live[0].Add(period).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
