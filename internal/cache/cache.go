// Package cache provides a small in-process TTL map, used to absorb
// repeated user-search lookups.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	val      any
	deadline time.Time
}

type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value if present and unexpired. Expired entries
// are removed lazily on read.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.deadline) {
		c.Delete(key)
		return nil, false
	}
	return e.val, true
}

func (c *Cache) Set(key string, val any) {
	e := entry{val: val, deadline: time.Now().Add(c.ttl)}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
