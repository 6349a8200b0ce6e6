package native

import lru "github.com/hashicorp/golang-lru"

// Cache is the interop.NativeCache implementation natives share: a
// fixed-size LRU of decoded storage values, scoped to one Context's
// lifetime so a committed-vs-uncommitted snapshot fork never leaks a
// stale read into another execution (mirrors neo-go's per-DAO
// dao.NativeContractCache, simplified to a flat key/value LRU since
// this engine has no nested-DAO nesting to mirror it across).
type Cache struct {
	lru *lru.Cache
}

// NewCache builds a Cache holding at most size entries; callers
// (cmd/t8n's block-execution driver) attach one to an
// interop.Context before running natives against it.
func NewCache(size int) *Cache {
	c, err := lru.New(size)
	if err != nil {
		// Only returns an error for size <= 0; callers pass a fixed
		// positive constant, so fall back to a minimal cache rather
		// than panicking on a native read path.
		c, _ = lru.New(1)
	}
	return &Cache{lru: c}
}

// Get satisfies interop.NativeCache.
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.lru.Get(key)
}

// Put satisfies interop.NativeCache.
func (c *Cache) Put(key string, value interface{}) {
	c.lru.Add(key, value)
}
