package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the entry lifetime used when no TTL is configured.
// Reads behind this cache refresh from the store at most this often.
const DefaultTTL = 5 * time.Second

// Entry is a cached value with its creation timestamp.
type Entry struct {
	Value     any
	CreatedAt time.Time
}

// ReadCache is a process-local short-TTL cache used by the store around
// read-heavy queries. Expired entries are evicted lazily on Get. A single
// coarse mutex guards all operations; the operation rate is low enough
// that striping would buy nothing.
type ReadCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]Entry
	hitCount  int64
	missCount int64

	now func() time.Time
}

// New creates a ReadCache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *ReadCache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a ReadCache that reads time from now. Callers that
// already carry an injectable clock pass it through so entry ages follow
// the same time source.
func NewWithClock(ttl time.Duration, now func() time.Time) *ReadCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReadCache{
		ttl:     ttl,
		entries: make(map[string]Entry),
		now:     now,
	}
}

// Get returns the cached value for key. Entries older than the TTL are
// treated as misses and removed.
func (c *ReadCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.missCount++
		return nil, false
	}
	if c.now().Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		c.missCount++
		return nil, false
	}

	c.hitCount++
	return entry.Value, true
}

// Set stores value under key, replacing any previous entry.
func (c *ReadCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{Value: value, CreatedAt: c.now()}
}

// Invalidate removes every entry whose key starts with prefix. An empty
// prefix clears the whole cache. Writers must call this before reporting
// success so no caller observes a stale read after a write.
func (c *ReadCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		c.entries = make(map[string]Entry)
		return
	}
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of entries currently held, expired or not.
func (c *ReadCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit/miss counters for debugging.
func (c *ReadCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hitCount, c.missCount
}
