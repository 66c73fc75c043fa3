// Package cache holds the in-process snapshot cache of the service.
package cache

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LRU is a thread-safe cache with least-recently-used eviction and a
// single TTL for all entries.
type LRU[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	maxItems int
	ttl      time.Duration
	now      func() time.Time

	hits      int64
	misses    int64
	evictions int64

	logger *zap.Logger
}

type entry[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// Stats holds cache statistics.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Items     int     `json:"items"`
	HitRate   float64 `json:"hit_rate"`
}

// NewLRU creates a cache holding at most maxItems entries for ttl each.
// A non-positive ttl keeps entries until they are evicted.
func NewLRU[V any](maxItems int, ttl time.Duration, logger *zap.Logger) *LRU[V] {
	if maxItems <= 0 {
		maxItems = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LRU[V]{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *LRU[V]) WithClock(now func() time.Time) *LRU[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the live entry for key.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := el.Value.(*entry[V])
	if c.expired(e) {
		c.remove(el)
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}

	for len(c.items) >= c.maxItems {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.logger.Debug("Evicting cache entry", zap.String("key", oldest.Value.(*entry[V]).key))
		c.remove(oldest)
		c.evictions++
	}

	e := &entry[V]{key: key, value: value}
	if c.ttl > 0 {
		e.expiry = c.now().Add(c.ttl)
	}
	c.items[key] = c.order.PushFront(e)
}

// Delete removes key and reports whether it was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.remove(el)
	}
	return ok
}

// Len returns the number of stored entries, expired ones included.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Items:     len(c.items),
		HitRate:   hitRate,
	}
}

// CleanupExpired drops every expired entry.
func (c *LRU[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, el := range c.items {
		if c.expired(el.Value.(*entry[V])) {
			c.remove(el)
			removed++
		}
	}
	return removed
}

func (c *LRU[V]) expired(e *entry[V]) bool {
	return !e.expiry.IsZero() && c.now().After(e.expiry)
}

// remove must be called with the lock held.
func (c *LRU[V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}
