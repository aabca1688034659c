// SPDX-License-Identifier: MIT

package basis

import (
	"context"
	"sync"
	"time"

	"github.com/photonlab/abel/internal/basex"
)

// entry is a cached set with its expiration time.
type entry struct {
	set        *basex.Set
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// CacheStats holds in-process cache counters.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	CurrentSize int
}

// MemoryCache keeps decoded basis sets in process memory in front of a
// Store, so repeated transforms skip the decode entirely. Entries expire
// after a TTL to bound memory on long-running daemons.
type MemoryCache struct {
	mu      sync.RWMutex
	inner   Store
	ttl     time.Duration
	entries map[string]*entry
	stats   CacheStats
}

// NewMemoryCache wraps inner with a TTL cache. ttl <= 0 means entries never
// expire.
func NewMemoryCache(inner Store, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// Load returns a cached set, falling back to the inner store.
func (c *MemoryCache) Load(ctx context.Context, key string) (*basex.Set, error) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()
	if found && (c.ttl <= 0 || !e.isExpired()) {
		c.mu.Lock()
		c.stats.Hits++
		c.mu.Unlock()
		return e.set, nil
	}

	// A memory miss is a miss whether or not the inner store has the set.
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()

	set, err := c.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	c.put(key, set)
	return set, nil
}

// Save writes through to the inner store and refreshes the memory entry.
func (c *MemoryCache) Save(ctx context.Context, key string, set *basex.Set) error {
	if err := c.inner.Save(ctx, key, set); err != nil {
		return err
	}
	c.put(key, set)
	return nil
}

// List delegates to the inner store.
func (c *MemoryCache) List(ctx context.Context) ([]string, error) {
	return c.inner.List(ctx)
}

// Delete evicts from both layers.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return c.inner.Delete(ctx, key)
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *MemoryCache) put(key string, set *basex.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{set: set, expiration: time.Now().Add(c.ttl)}
	c.stats.Sets++
	// Drop any other expired entries while holding the lock.
	if c.ttl > 0 {
		for k, e := range c.entries {
			if e.isExpired() {
				delete(c.entries, k)
			}
		}
	}
}
