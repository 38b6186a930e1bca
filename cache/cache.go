// Package cache provides the in-memory response cache shared by all upstream clients.
//
// Entries expire after a fixed TTL and the cache holds a bounded number of
// entries. When full, the oldest inserted entry is evicted (FIFO, not LRU):
// reading an entry does not extend its life or change its position.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 100
)

// Entry is a single cached value.
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// Stats describes the current occupancy of a Cache.
type Stats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"maxSize"`
	TTL     time.Duration `json:"ttl"`
}

// Cache is a TTL-bounded, size-bounded key/value store.
// Values are shared with callers and must be treated as read-only.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	order   *list.List // front = oldest inserted
	entries map[string]*list.Element
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long entries stay fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty Cache with a 5 minute TTL and room for 100 entries.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key if it is younger than the TTL.
// Expired entries are removed and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*Entry)
	if c.now().Sub(entry.StoredAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key. Overwriting an existing key refreshes its
// timestamp but keeps its insertion position. Inserting a new key into a
// full cache evicts the oldest inserted entry first.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*Entry)
		entry.Value = value
		entry.StoredAt = now
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*Entry).Key)
		}
	}

	c.entries[key] = c.order.PushBack(&Entry{Key: key, Value: value, StoredAt: now})
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Len returns the number of stored entries, including ones that have
// expired but not yet been read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports size and limits.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: c.order.Len(), MaxSize: c.maxSize, TTL: c.ttl}
}

// Keys returns stored keys from oldest to newest inserted.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry).Key)
	}
	return keys
}
