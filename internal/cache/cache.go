// Package cache implements a small in-process TTL cache with separate
// lifetimes for positive and negative entries. Successful resolutions are
// stable (long TTL) while misses self-heal quickly (short TTL).
//
// The clock is injectable so expiry behavior is deterministic in tests.
// Entries are immutable once written: a Put overwrites wholesale, never
// mutates in place.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value    T
	negative bool
	at       time.Time
}

// Cache is a mutex-guarded map of TTL-stamped entries.
type Cache[T any] struct {
	mu          sync.RWMutex
	entries     map[string]entry[T]
	positiveTTL time.Duration
	negativeTTL time.Duration
	now         func() time.Time
}

// New returns a cache with the given positive and negative TTLs.
func New[T any](positiveTTL, negativeTTL time.Duration) *Cache[T] {
	return &Cache[T]{
		entries:     make(map[string]entry[T]),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		now:         time.Now,
	}
}

// WithClock replaces the cache's time source. Intended for tests.
func (c *Cache[T]) WithClock(now func() time.Time) *Cache[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Put stores a positive entry under key, stamping it with the current time.
func (c *Cache[T]) Put(key string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: v, at: c.now()}
}

// PutNegative records that key resolved to nothing. Negative entries use the
// shorter TTL and report found=true, negative=true from Get while fresh.
func (c *Cache[T]) PutNegative(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{negative: true, at: c.now()}
}

// Get returns the cached value for key. found is false when the key is
// absent or its TTL has elapsed. negative is true for fresh negative
// entries; the zero value accompanies them.
func (c *Cache[T]) Get(key string) (v T, found, negative bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return v, false, false
	}
	ttl := c.positiveTTL
	if e.negative {
		ttl = c.negativeTTL
	}
	if c.now().Sub(e.at) >= ttl {
		return v, false, false
	}
	return e.value, true, e.negative
}

// GetStale returns a positive entry even after its TTL has elapsed. Used as
// a fallback when the authoritative source is unreachable.
func (c *Cache[T]) GetStale(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.negative {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Delete removes a single key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}

// Len reports the number of entries, fresh or not.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
