package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds the cache when no size is configured
const DefaultMaxEntries = 100

// Stats is a point-in-time view of cache usage
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache is a bounded map that evicts in insertion order once it holds more than
// maxEntries keys. Concurrent computes of one key share a single call.
type Cache struct {
	mu         sync.Mutex
	items      map[string]interface{}
	order      []string
	maxEntries int
	hits       uint64
	misses     uint64
	sf         singleflight.Group
}

// New creates a cache holding at most maxEntries values
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		items:      make(map[string]interface{}),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Key builds a cache key from an operation name and its parameters. The JSON
// encoding is hashed so keys stay small for large parameter sets.
func Key(operation string, params interface{}) (string, error) {
	data, err := json.Marshal(struct {
		Operation string      `json:"operation"`
		Params    interface{} `json:"params"`
	}{operation, params})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key for %s: %w", operation, err)
	}
	sum := sha256.Sum256(data)
	return operation + ":" + hex.EncodeToString(sum[:]), nil
}

// Get returns the cached value for key
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores a value. Overwriting keeps the key's original insertion position.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = value
	c.evictIfNeeded()
}

// GetOrCompute returns the cached value or runs compute and stores its result.
// The second return value reports whether the value came from the cache.
func (c *Cache) GetOrCompute(key string, compute func() (interface{}, error)) (interface{}, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// Delete removes one key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Purge drops every entry and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]interface{})
	c.order = c.order[:0]
	return n
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats reports entry count and hit/miss counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.items), Hits: c.hits, Misses: c.misses}
}

func (c *Cache) evictIfNeeded() {
	for len(c.items) > c.maxEntries && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
	}
}
