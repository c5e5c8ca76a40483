package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Policy selects which entry is evicted first when a cache is over budget.
type Policy string

const (
	// PolicyLRU evicts the least recently accessed entry.
	PolicyLRU Policy = "lru"
	// PolicyFIFO evicts the oldest inserted entry regardless of access.
	PolicyFIFO Policy = "fifo"
)

// ParsePolicy maps a config value onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyLRU, "":
		return PolicyLRU, nil
	case PolicyFIFO:
		return PolicyFIFO, nil
	default:
		return "", fmt.Errorf("unknown cache policy %q", s)
	}
}

// LRU cache with TTL, entry-count and byte-budget eviction
type LRUCache[T any] struct {
	mu       sync.Mutex
	maxSize  int
	maxBytes int64
	sizer    func(T) int64
	policy   Policy
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	lru      *list.List
	bytes    int64

	hits      int64
	misses    int64
	evictions int64
}

type cacheItem[T any] struct {
	key       string
	data      T
	size      int64
	expiresAt time.Time
}

// Option configures an LRUCache.
type Option[T any] func(*LRUCache[T])

// WithByteBudget bounds the summed size of all entries as reported by sizer.
func WithByteBudget[T any](maxBytes int64, sizer func(T) int64) Option[T] {
	return func(c *LRUCache[T]) {
		c.maxBytes = maxBytes
		c.sizer = sizer
	}
}

// WithPolicy sets the eviction order.
func WithPolicy[T any](p Policy) Option[T] {
	return func(c *LRUCache[T]) {
		c.policy = p
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRUCache[T]) {
		c.now = now
	}
}

// NewLRUCache creates a new LRU cache with TTL. A maxSize of zero means no
// entry-count bound.
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRUCache[T] {
	c := &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		policy:  PolicyLRU,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])

	if c.expired(item) {
		c.removeElement(elem)
		c.misses++
		return zero, false
	}

	// FIFO keeps insertion order, so reads never reorder.
	if c.policy == PolicyLRU {
		c.lru.MoveToFront(elem)
	}
	c.hits++
	return item.data, true
}

// Set stores a value in the cache. It returns ErrEntryTooLarge when the value
// alone exceeds the byte budget.
func (c *LRUCache[T]) Set(key string, data T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var size int64
	if c.sizer != nil {
		size = c.sizer(data)
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		return fmt.Errorf("%w: %d bytes over a %d byte budget", ErrEntryTooLarge, size, c.maxBytes)
	}

	item := &cacheItem[T]{
		key:  key,
		data: data,
		size: size,
	}
	if c.ttl > 0 {
		item.expiresAt = c.now().Add(c.ttl)
	}

	if elem, exists := c.items[key]; exists {
		old := elem.Value.(*cacheItem[T])
		c.bytes += size - old.size
		elem.Value = item
		c.lru.MoveToFront(elem)
	} else {
		c.items[key] = c.lru.PushFront(item)
		c.bytes += size
	}

	c.evictOverBudget()
	return nil
}

func (c *LRUCache[T]) evictOverBudget() {
	for c.lru.Len() > 0 {
		overCount := c.maxSize > 0 && c.lru.Len() > c.maxSize
		overBytes := c.maxBytes > 0 && c.bytes > c.maxBytes
		if !overCount && !overBytes {
			return
		}
		c.removeElement(c.lru.Back())
		c.evictions++
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Clear drops every entry and resets the counters.
func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.bytes = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	c.bytes -= item.size
}

func (c *LRUCache[T]) expired(item *cacheItem[T]) bool {
	return !item.expiresAt.IsZero() && c.now().After(item.expiresAt)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*cacheItem[T])) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	return len(toRemove)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.items),
		SizeBytes: c.bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate(c.hits, c.misses),
	}
}
