// Package memory provides in-memory implementations of store interfaces.
// The Cache implementation keeps view values in a map guarded by
// sync.RWMutex and tracks in-flight fetches per key so they can be cancelled
// before an optimistic write. It is suitable for applications, examples and
// tests that do not need the cache to outlive the process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
)

// entry is a cached value with its staleness state.
type entry struct {
	value     any
	stale     bool
	updatedAt time.Time
}

// Cache is an in-memory implementation of opsconnect.CacheStore.
type Cache struct {
	entries   map[string]*entry
	listeners map[int]func(key string)
	nextID    int
	mu        sync.RWMutex

	inflight *inflightSet
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		listeners: make(map[int]func(string)),
		inflight:  newInflightSet(),
	}
}

// Get returns the cached value for key, stale or not.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	return e.value, true
}

// Set replaces the cached value for key and marks it fresh.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:     value,
		updatedAt: time.Now(),
	}
}

// Delete removes key from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Invalidate marks key as stale and notifies invalidation listeners.
// Listeners run synchronously, outside the cache lock.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	if e, exists := c.entries[key]; exists {
		e.stale = true
	}
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(string), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(key)
	}
}

// IsStale reports whether key is missing or has been invalidated since its
// last Set.
func (c *Cache) IsStale(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	return !exists || e.stale
}

// UpdatedAt returns when key was last Set.
func (c *Cache) UpdatedAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// OnInvalidate registers fn to be called with every invalidated key.
// The returned function unregisters it.
func (c *Cache) OnInvalidate(fn func(key string)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Track registers an in-flight fetch for key. The returned context is
// cancelled by CancelPending; done must be called when the fetch finishes.
func (c *Cache) Track(ctx context.Context, key string) (context.Context, func()) {
	return c.inflight.track(ctx, key)
}

// CancelPending cancels every in-flight fetch for key and waits until they
// have all called done, or until ctx ends.
func (c *Cache) CancelPending(ctx context.Context, key string) error {
	return c.inflight.cancel(ctx, key)
}

// Pending returns the number of in-flight fetches for key.
func (c *Cache) Pending(key string) int {
	return c.inflight.pending(key)
}

// Verify that Cache implements opsconnect.CacheStore
var _ opsconnect.CacheStore = (*Cache)(nil)
