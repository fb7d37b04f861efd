package cache

import (
	"sync"

	"github.com/keywarden/keywarden/pkg/types"
)

// MemoryCache holds results for the duration of one process. Useful for
// tests and for runs where persistence was not requested.
type MemoryCache struct {
	mu      sync.RWMutex
	results map[types.Fingerprint]Result
}

// NewMemory creates an in-memory cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{results: make(map[types.Fingerprint]Result)}
}

// Get returns the cached result for a fingerprint, if present.
func (c *MemoryCache) Get(key types.Fingerprint) (Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[key]
	return result, ok, nil
}

// Put stores the result for a fingerprint.
func (c *MemoryCache) Put(key types.Fingerprint, result Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
	return nil
}

// Close is a no-op.
func (c *MemoryCache) Close() error {
	return nil
}
