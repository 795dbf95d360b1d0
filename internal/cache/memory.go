// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kzmx/subarr/internal/metrics"
)

// sweepEvery is the access count between opportunistic expiry sweeps.
const sweepEvery = 100

// entry is a cached value with its expiry. A zero expiry never expires.
type entry struct {
	value   []byte
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// memoryCache is the in-process fallback backend. All access goes through
// one mutex; expired entries are evicted opportunistically every sweepEvery
// accesses rather than by a background timer.
type memoryCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	accesses int
	stats    Stats
}

// NewMemory creates the in-process cache backend.
func NewMemory() Cache {
	return &memoryCache{entries: make(map[string]*entry)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweep()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		c.stats.Misses++
		metrics.RecordCacheOp("memory", "get", "miss")
		return nil, false
	}
	c.stats.Hits++
	metrics.RecordCacheOp("memory", "get", "hit")
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweep()

	e := &entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	c.entries[key] = e
	c.stats.Sets++
	metrics.RecordCacheOp("memory", "set", "ok")
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Exists(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweep()

	e, ok := c.entries[key]
	return ok && !e.expired(time.Now())
}

func (c *memoryCache) Clear(_ context.Context, prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *memoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Backend = "memory"
	stats.CurrentSize = len(c.entries)
	metrics.SetCacheSize("memory", stats.CurrentSize)
	return stats
}

// maybeSweep evicts expired entries on every sweepEvery-th access.
// Caller must hold the lock.
func (c *memoryCache) maybeSweep() {
	c.accesses++
	if c.accesses%sweepEvery != 0 {
		return
	}
	now := time.Now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
	}
}
