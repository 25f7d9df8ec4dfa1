package idempotency

import (
	"sync"
	"time"
)

type localEntry struct {
	rec       Record
	expiresAt time.Time
}

// localCache is the in-process tier. Expired entries are dropped on access
// and swept whenever a write lands.
type localCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
}

func newLocalCache() *localCache {
	return &localCache{entries: make(map[string]localEntry)}
}

func (c *localCache) get(key string, now time.Time) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	rec := e.rec
	return &rec, true
}

func (c *localCache) put(key string, rec Record, expiresAt, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		return
	}
	c.entries[key] = localEntry{rec: rec, expiresAt: expiresAt}
}

func (c *localCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
