package psstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/proxystore-go/proxystore/pkg/connector"
)

// cache is the bounded LRU of deserialized objects, private to one Store
// instance, keyed by connector key. Capacity 0 disables caching entirely; a
// negative capacity is rejected by newCache. Eviction moves the
// least-recently-used key out, matching testable property 6.
type cache struct {
	mu       sync.Mutex
	inner    *lru.Cache[string, any]
	disabled bool
}

func newCache(size int) (*cache, error) {
	if size < 0 {
		return nil, errNegativeCacheSize
	}
	if size == 0 {
		return &cache{disabled: true}, nil
	}
	inner, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &cache{inner: inner}, nil
}

func (c *cache) get(key connector.Key) (any, bool) {
	if c.disabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(key.String())
}

func (c *cache) set(key connector.Key, obj any) {
	if c.disabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key.String(), obj)
}

func (c *cache) evict(key connector.Key) {
	if c.disabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(key.String())
}

func (c *cache) contains(key connector.Key) bool {
	if c.disabled {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Contains(key.String())
}

func (c *cache) size() int {
	if c.disabled {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}
