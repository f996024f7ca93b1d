// Package cache provides a thread-safe TTL key/value store shared by the
// content fetcher and the enrichment service. Expiration is lazy: an entry is
// logically absent once its TTL has elapsed, regardless of physical presence,
// and reads evict what they find expired.
package cache

import (
	"sync"
	"time"
)

// entry holds a value with its expiration deadline.
type entry[V any] struct {
	value     V
	timestamp time.Time
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TTLCache is a generic time-boxed key/value store.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	items   map[string]*entry[V]
	janitor chan struct{}
}

// New creates an empty cache.
func New[V any]() *TTLCache[V] {
	return &TTLCache[V]{
		items: make(map[string]*entry[V]),
	}
}

// Set stores a value under key for the given TTL, replacing any prior entry.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &entry[V]{
		value:     value,
		timestamp: now,
		expiresAt: now.Add(ttl),
	}
}

// Get returns the value for key. An expired entry is treated as absent and
// evicted as a side effect.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if e.expired(now) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have replaced it.
		if current, still := c.items[key]; still && current.expired(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}

	return e.value, true
}

// Delete removes key from the cache.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V])
}

// Size returns the number of physically present entries, expired or not.
func (c *TTLCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the keys of all logically live entries. Expired entries are
// never included and are evicted while scanning.
func (c *TTLCache[V]) Keys() []string {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// EvictExpired removes every expired entry and returns how many were evicted.
func (c *TTLCache[V]) EvictExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			evicted++
		}
	}
	return evicted
}

// StartJanitor launches an optional background sweep every interval. Lazy
// expiration alone satisfies the cache contract; the sweep only bounds memory.
func (c *TTLCache[V]) StartJanitor(interval time.Duration) {
	c.mu.Lock()
	if c.janitor != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.janitor = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.EvictExpired()
			case <-stop:
				return
			}
		}
	}()
}

// StopJanitor stops the background sweep if one is running.
func (c *TTLCache[V]) StopJanitor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.janitor != nil {
		close(c.janitor)
		c.janitor = nil
	}
}
