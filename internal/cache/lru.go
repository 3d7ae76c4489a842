// Package cache provides the bounded in-memory memo of parsed app data.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

// Option configures an LRU.
type Option[K comparable, V any] func(*LRU[K, V])

// WithEvictHook registers a callback invoked after an entry is evicted for capacity.
func WithEvictHook[K comparable, V any](fn func(key K)) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.onEvict = fn
	}
}

// LRU is a fixed-capacity least-recently-used cache that counts hits, misses
// and evictions. Entries are never removed other than by eviction, so the
// eviction callback only fires for capacity.
type LRU[K comparable, V any] struct {
	entries   *lru.Cache[K, V]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	onEvict   func(key K)
}

// New builds an LRU holding at most capacity entries.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *LRU[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &LRU[K, V]{capacity: capacity}
	for _, opt := range opts {
		opt(c)
	}
	// Only a non-positive size is rejected, and capacity is positive here.
	c.entries, _ = lru.NewWithEvict[K, V](capacity, c.evicted)
	return c
}

func (c *LRU[K, V]) evicted(key K, _ V) {
	c.evictions.Add(1)
	if c.onEvict != nil {
		c.onEvict(key)
	}
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put inserts or replaces a value, evicting the least recently used entry
// when the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.entries.Add(key, value)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.entries.Len()
}

// Stats returns a snapshot of the counters.
func (c *LRU[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
		Capacity:  c.capacity,
	}
}

// Noop satisfies the cache contract while storing nothing.
type Noop[K comparable, V any] struct{}

// NewNoop returns a disabled cache.
func NewNoop[K comparable, V any]() Noop[K, V] {
	return Noop[K, V]{}
}

// Get always misses.
func (Noop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

// Put discards the value.
func (Noop[K, V]) Put(K, V) {}
