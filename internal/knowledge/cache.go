package knowledge

import (
	"fmt"
	"sync"
)

// queryCache stores query results for the process lifetime. There is no
// TTL; entries live until pushed out by newer ones. Eviction is strictly
// insertion-ordered (not LRU): when the cache exceeds maxSize, the
// oldest-inserted entries go first.
type queryCache struct {
	mu      sync.RWMutex
	entries map[string][]Result
	order   []string
	maxSize int
}

func newQueryCache(maxSize int) *queryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &queryCache{
		entries: make(map[string][]Result),
		maxSize: maxSize,
	}
}

// cacheKey builds the composite key for one query.
func cacheKey(source, query string, maxResults int) string {
	return fmt.Sprintf("%s|%s|%d", source, query, maxResults)
}

func (c *queryCache) get(key string) ([]Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results, ok := c.entries[key]
	return results, ok
}

func (c *queryCache) set(key string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = results

	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *queryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// keys returns the insertion order, oldest first.
func (c *queryCache) keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
