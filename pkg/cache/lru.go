// Package cache provides an in-memory LRU cache with TTL used to keep
// resolved reference data (subcategory codes) close to the request path.
package cache

import (
	"sync"
	"time"
)

// entry holds a cached value with its expiration time and last access time.
type entry[V any] struct {
	value      V
	expiresAt  time.Time
	accessedAt time.Time
}

// LRUCache is a thread-safe in-memory cache with TTL and max-size eviction.
// When the cache reaches maxSize, the least recently used entry is evicted
// to make room for new entries. Expired entries are lazily evicted on Get.
type LRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*entry[V]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewLRUCache creates a new LRU cache with the given maximum size and TTL.
// maxSize must be >= 1; ttl must be > 0.
func NewLRUCache[K comparable, V any](maxSize int, ttl time.Duration) *LRUCache[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LRUCache[K, V]{
		items:   make(map[K]*entry[V], maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached value by key. Returns the zero value and false if
// the key is missing or expired.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}

	now := c.now()
	if now.After(e.expiresAt) {
		delete(c.items, key)
		return zero, false
	}

	e.accessedAt = now
	return e.value, true
}

// GetMany returns the cached values for keys and the keys that missed.
func (c *LRUCache[K, V]) GetMany(keys []K) (map[K]V, []K) {
	hits := make(map[K]V, len(keys))
	var misses []K
	for _, k := range keys {
		if v, ok := c.Get(k); ok {
			hits[k] = v
			continue
		}
		misses = append(misses, k)
	}
	return hits, misses
}

// Set stores a value in the cache. If the cache is at capacity, the least
// recently used entry is evicted before inserting.
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = &entry[V]{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}
}

// Invalidate removes a specific key from the cache.
func (c *LRUCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// InvalidateAll removes all entries from the cache.
func (c *LRUCache[K, V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*entry[V], c.maxSize)
}

// Size returns the number of entries currently in the cache (including
// potentially expired ones that haven't been lazily cleaned).
func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evictOldest removes the entry with the oldest accessedAt timestamp.
// Must be called with c.mu held.
func (c *LRUCache[K, V]) evictOldest() {
	var oldestKey K
	var oldestTime time.Time
	first := true

	for k, e := range c.items {
		if first || e.accessedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.accessedAt
			first = false
		}
	}

	if !first {
		delete(c.items, oldestKey)
	}
}
