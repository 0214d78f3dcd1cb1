package server

import (
	"sync"
	"time"
)

// ModelCache holds the last model-name list fetched from the daemon. It is
// a hint only: callers choose whether a stale entry is acceptable, and can
// bypass it entirely.
type ModelCache struct {
	mu          sync.RWMutex
	names       []string
	refreshedAt time.Time
	ttl         time.Duration
}

// NewModelCache constructs an empty cache whose entries expire after ttl.
func NewModelCache(ttl time.Duration) *ModelCache {
	return &ModelCache{ttl: ttl}
}

// Get returns the cached names and their refresh time. ok is false when
// the cache is empty or the entry has outlived its TTL.
func (c *ModelCache) Get() (names []string, refreshedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.names == nil || time.Since(c.refreshedAt) > c.ttl {
		return nil, time.Time{}, false
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out, c.refreshedAt, true
}

// Put replaces the cached list and stamps the refresh time.
func (c *ModelCache) Put(names []string) {
	out := make([]string, len(names))
	copy(out, names)
	c.mu.Lock()
	c.names = out
	c.refreshedAt = time.Now()
	c.mu.Unlock()
}

// Invalidate drops the cached list so the next Get misses.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	c.names = nil
	c.refreshedAt = time.Time{}
	c.mu.Unlock()
}
