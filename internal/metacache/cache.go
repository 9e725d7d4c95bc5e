// Package metacache provides a bounded, time-expiring in-memory store for
// resolved metadata, shared by the ISBN and LCCN resolvers. Entries live for a
// fixed TTL and the store is reset on process restart; nothing is persisted.
package metacache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a key-value store with TTL expiry and a best-effort entry ceiling.
// Safe for concurrent use by parallel import batches.
type Cache[V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]entry[V]
	now        func() time.Time
}

// New creates a cache whose entries expire after ttl. When an insert pushes
// the entry count past maxEntries, expired entries are swept.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	return &Cache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry[V]),
		now:        time.Now,
	}
}

// Get returns the cached value for key. An entry older than the TTL is
// evicted and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put inserts or overwrites the value for key. When the entry count exceeds
// the ceiling, every expired entry is removed. The sweep is a best-effort
// cleanup, not LRU: if nothing has expired the cache transiently exceeds the
// ceiling.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, storedAt: c.now()}

	if len(c.entries) > c.maxEntries {
		now := c.now()
		for k, e := range c.entries {
			if now.Sub(e.storedAt) > c.ttl {
				delete(c.entries, k)
			}
		}
	}
}

// Len returns the current entry count.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
