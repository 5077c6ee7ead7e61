package geocode

import "sync"

// Cache is the run-scoped lookup cache. Keys are the exact address
// strings, case sensitive, and entries are never evicted for the
// lifetime of the run. Misses are cached too, so an unknown address
// costs exactly one remote call no matter how often it recurs.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Result
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Result)}
}

// Get returns the cached result and whether the address has been seen.
func (c *Cache) Get(address string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[address]
	return r, ok
}

// Put records a result, match or miss alike.
func (c *Cache) Put(address string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = r
}

// Len reports the number of distinct addresses seen so far.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
