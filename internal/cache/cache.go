// Package cache provides the scoped read-through cache injected into workbook
// sessions. Entries are keyed by (scope, key) and only leave the cache through
// explicit invalidation or LRU eviction.
package cache

import (
	"fmt"
	"sync"

	"cellscript/internal/logging"

	lru "github.com/hashicorp/golang-lru"
)

// Loader produces the value for a missing entry.
type Loader func() (interface{}, error)

// Service is a scoped read-through cache with manual invalidation.
type Service interface {
	Get(scope, key string, load Loader) (interface{}, error)
	Invalidate(scope, key string)
	InvalidateScope(scope string)
	Purge()
	Stats() Stats
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Entries int
	Hits    int
	Misses  int
}

type entryKey struct {
	scope string
	key   string
}

// LRU is a Service backed by a fixed-size LRU.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache

	hits   int
	misses int
}

// NewLRU creates a cache holding at most size entries.
func NewLRU(size int) (*LRU, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRU{cache: c}, nil
}

// Get returns the cached value, calling load on a miss. Failed loads are not cached.
func (c *LRU) Get(scope, key string, load Loader) (interface{}, error) {
	k := entryKey{scope, key}

	c.mu.Lock()
	if v, ok := c.cache.Get(k); ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	logging.CacheDebug("miss %s/%s", scope, key)
	v, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(k, v)
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops one entry.
func (c *LRU) Invalidate(scope, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache.Remove(entryKey{scope, key}) {
		logging.CacheDebug("invalidated %s/%s", scope, key)
	}
}

// InvalidateScope drops every entry of scope.
func (c *LRU) InvalidateScope(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for _, raw := range c.cache.Keys() {
		if k, ok := raw.(entryKey); ok && k.scope == scope {
			c.cache.Remove(k)
			dropped++
		}
	}
	if dropped > 0 {
		logging.CacheDebug("invalidated scope %s (%d entries)", scope, dropped)
	}
}

// Purge empties the cache.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Stats returns the entry count and the hit and miss counts since creation.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: c.cache.Len(), Hits: c.hits, Misses: c.misses}
}
