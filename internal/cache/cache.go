package cache

import (
	"sync"
	"time"
)

// entry stores one cached value with its expiry.
type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// Options configures a Cache.
type Options struct {
	// MaxItems caps the number of retained entries. 0 means unbounded.
	MaxItems int
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Cache is a concurrency-safe key/value store with per-entry expiry.
// Expired entries are invisible to readers whether or not they have been
// swept yet.
type Cache[V any] struct {
	maxItems int
	now      func() time.Time

	mu    sync.RWMutex
	items map[string]entry[V]
}

func New[V any](opts Options) *Cache[V] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		maxItems: opts.MaxItems,
		now:      now,
		items:    make(map[string]entry[V]),
	}
}

// Get returns the value for key when present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !now.Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set overwrites key unconditionally; expiry counts from now. A non-positive
// ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, storedAt: now, expiresAt: now.Add(ttl)}
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictLocked(now)
	}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Len reports retained entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictLocked removes expired entries first, then the entries closest to
// expiry until the cap holds.
func (c *Cache[V]) evictLocked(now time.Time) {
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
	for len(c.items) > c.maxItems {
		var oldestKey string
		var oldest time.Time
		first := true
		for k, e := range c.items {
			if first || e.expiresAt.Before(oldest) {
				oldestKey, oldest, first = k, e.expiresAt, false
			}
		}
		delete(c.items, oldestKey)
	}
}
