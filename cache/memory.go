package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/nip10/fmp-go-cache/logger"
)

// MemoryConfig contains in-process store configuration.
type MemoryConfig struct {
	// MaxSize bounds the entry count. Inserting beyond it evicts the
	// least-recently-used entry.
	MaxSize int
	// OnEvict, if set, is called with the key of every entry removed by
	// LRU pressure. Expiry and explicit deletes do not trigger it.
	OnEvict func(key string)
	Logger  *logger.Logger
}

// DefaultMemoryConfig returns the default in-process store configuration.
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		MaxSize: 1000,
	}
}

// MemoryCache is a bounded in-process cache with per-entry TTL and
// least-recently-used eviction. Expired entries are removed lazily when
// touched by Get or Has; Prune reclaims them eagerly.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recently used
	index   map[string]*list.Element
	onEvict func(string)
	log     *logger.Logger
}

type memoryEntry struct {
	key       string
	value     any
	createdAt time.Time
	ttl       time.Duration
}

// expired reports whether the entry is past its time-to-live at now.
func (e *memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// NewMemoryCache creates a new in-process cache. A nil config uses
// defaults; an explicit non-positive MaxSize is a configuration error.
func NewMemoryCache(cfg *MemoryConfig) (*MemoryCache, error) {
	if cfg == nil {
		cfg = DefaultMemoryConfig()
	}
	if cfg.MaxSize <= 0 {
		return nil, ErrInvalidMaxSize
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &MemoryCache{
		maxSize: cfg.MaxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
		onEvict: cfg.OnEvict,
		log:     log,
	}, nil
}

// Get returns the value for key if a live entry exists, refreshing its
// LRU position. An expired entry is removed and reported as a miss.
func (c *MemoryCache) Get(ctx context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*memoryEntry)
	if ent.expired(time.Now()) {
		c.remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

// Set inserts or overwrites key. Overwriting replaces the value,
// creation time and TTL and refreshes the LRU position. Inserting a new
// key at capacity evicts exactly one least-recently-used entry first.
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		// Nothing can be live with a non-positive TTL; an existing
		// entry is overwritten by removal.
		if el, ok := c.index[key]; ok {
			c.remove(el)
		}
		return
	}

	if el, ok := c.index[key]; ok {
		ent := el.Value.(*memoryEntry)
		ent.value = value
		ent.createdAt = time.Now()
		ent.ttl = ttl
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		c.evictOldest()
	}
	ent := &memoryEntry{
		key:       key,
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	}
	c.index[key] = c.order.PushFront(ent)
}

// Has reports whether a live entry exists for key. Unlike Get it does
// not refresh the LRU position, but it evicts an expired entry the same
// way.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return false
	}
	if el.Value.(*memoryEntry).expired(time.Now()) {
		c.remove(el)
		return false
	}
	return true
}

// Delete removes key regardless of liveness and reports whether an
// entry was removed.
func (c *MemoryCache) Delete(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return false
	}
	c.remove(el)
	return true
}

// Clear drops all entries and resets the LRU order.
func (c *MemoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.index = make(map[string]*list.Element)
}

// Size returns the count of entries physically present, which may
// transiently include expired entries not yet lazily evicted.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// MemoryStats reports in-process store statistics.
type MemoryStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"max_size"`
}

// Stats returns current store statistics.
func (c *MemoryCache) Stats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MemoryStats{
		Size:    len(c.index),
		MaxSize: c.maxSize,
	}
}

// Prune scans all entries, removes every expired one and returns the
// count removed. It is the only operation that reconciles Size with
// true liveness without per-key access.
func (c *MemoryCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*memoryEntry).expired(now) {
			c.remove(el)
			removed++
		}
		el = next
	}
	if removed > 0 {
		c.log.Debug("pruned expired cache entries", "removed", removed, "size", len(c.index))
	}
	return removed
}

// evictOldest removes the least-recently-used entry. Caller holds the lock.
func (c *MemoryCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	key := el.Value.(*memoryEntry).key
	c.remove(el)
	if c.onEvict != nil {
		c.onEvict(key)
	}
}

// remove unlinks an element from both the order list and the index.
// Caller holds the lock.
func (c *MemoryCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*memoryEntry).key)
}
