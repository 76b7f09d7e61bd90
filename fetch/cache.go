package fetch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/letmevibethatforyou/contentx"
)

// Cache is a query result cache keyed by query name and variables. It is
// safe for concurrent use and meant to be shared by every Fetcher in a
// process. Entries never merge: a write replaces the whole entry for its key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	query  string
	data   *contentx.RawResult
	stored time.Time
}

// NewCache creates an empty cache. A zero ttl keeps entries until they are
// replaced or invalidated.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// CacheKey returns the cache key of query with vars.
func CacheKey(query contentx.Query, vars contentx.Variables) string {
	// Variables only holds strings and a small struct, so Marshal cannot fail.
	b, _ := json.Marshal(vars)
	return query.Name + ":" + string(b)
}

// Get returns the cached data for query and vars.
func (c *Cache) Get(query contentx.Query, vars contentx.Variables) (*contentx.RawResult, bool) {
	key := CacheKey(query, vars)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.stored) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.stored.Equal(entry.stored) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

// Put stores data for query and vars, replacing any previous entry.
func (c *Cache) Put(query contentx.Query, vars contentx.Variables, data *contentx.RawResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[CacheKey(query, vars)] = cacheEntry{
		query:  query.Name,
		data:   data,
		stored: c.now(),
	}
}

// Invalidate drops every entry of the named query. It returns the number of
// entries removed.
func (c *Cache) Invalidate(queryName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, entry := range c.entries {
		if entry.query == queryName {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
