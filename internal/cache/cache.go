package cache

import "sync"

// Cache is a generic thread-safe LRU cache with a soft limit.
//
// Unlike a classic LRU, inserting never evicts. Entries may still be in use
// by the frame that created them, so eviction happens only when the owner
// calls Trim at a point where nothing cached is referenced by pending work.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*lruNode[K, V]
	order     lruList[K, V]
	softLimit int
	onEvict   func(K, V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a new cache with the given soft limit.
// A softLimit of 0 means unlimited. onEvict, if non-nil, is called for every
// entry removed by Trim, DeleteFunc or Clear, after the cache lock is released.
func New[K comparable, V any](softLimit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*lruNode[K, V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
}

// Get retrieves a value from the cache and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(node)
	return node.value, true
}

// Set stores a value in the cache, replacing any previous value for key.
// The replaced value is not passed to onEvict.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		node.value = value
		c.order.MoveToFront(node)
		return
	}
	c.entries[key] = c.order.PushFront(key, value)
}

// GetOrCreate returns the cached value or creates and stores it.
// create is called under lock to prevent duplicate creation. A create error
// leaves the cache unchanged. The boolean reports a cache hit.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(node)
		return node.value, true, nil
	}
	c.misses++

	value, err := create()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.entries[key] = c.order.PushFront(key, value)
	return value, false, nil
}

// Delete removes an entry without calling onEvict.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(node)
	delete(c.entries, key)
	return true
}

// DeleteFunc removes every entry for which match returns true and passes it
// to onEvict. Returns the number of removed entries.
func (c *Cache[K, V]) DeleteFunc(match func(K, V) bool) int {
	c.mu.Lock()
	var evicted []*lruNode[K, V]
	for key, node := range c.entries {
		if match(key, node.value) {
			c.order.Remove(node)
			delete(c.entries, key)
			evicted = append(evicted, node)
		}
	}
	c.evictions += uint64(len(evicted))
	c.mu.Unlock()

	c.notify(evicted)
	return len(evicted)
}

// Trim evicts least recently used entries until the cache is within its soft
// limit. Returns the number of evicted entries.
func (c *Cache[K, V]) Trim() int {
	c.mu.Lock()
	var evicted []*lruNode[K, V]
	for c.softLimit > 0 && len(c.entries) > c.softLimit {
		node := c.order.RemoveOldest()
		if node == nil {
			break
		}
		delete(c.entries, node.key)
		evicted = append(evicted, node)
	}
	c.evictions += uint64(len(evicted))
	c.mu.Unlock()

	c.notify(evicted)
	return len(evicted)
}

// Clear removes all entries, passing each to onEvict.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	evicted := make([]*lruNode[K, V], 0, len(c.entries))
	for node := c.order.head; node != nil; node = node.next {
		evicted = append(evicted, node)
	}
	c.entries = make(map[K]*lruNode[K, V])
	c.order.Clear()
	c.evictions += uint64(len(evicted))
	c.mu.Unlock()

	c.notify(evicted)
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Capacity returns the soft limit of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.softLimit
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.softLimit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache[K, V]) notify(evicted []*lruNode[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, node := range evicted {
		c.onEvict(node.key, node.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the soft limit.
	Capacity int
	// Hits is the number of lookups that found an entry.
	Hits uint64
	// Misses is the number of lookups that did not.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when there were no lookups.
	HitRate float64
	// Evictions is the number of entries removed by Trim, DeleteFunc or Clear.
	Evictions uint64
}
