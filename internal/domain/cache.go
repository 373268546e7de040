package domain

import (
	"container/list"
	"sync"

	"github.com/lotas/tabflow/internal/types"
)

// DefaultCacheSize bounds the URL cache.
const DefaultCacheSize = 100

// Cache memoizes DomainInfo by raw URL. When full it evicts the oldest
// inserted entry (FIFO); reads do not refresh an entry's position.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = oldest insertion
}

type cacheEntry struct {
	url  string
	info types.DomainInfo
}

// NewCache returns a cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached info for url.
func (c *Cache) Get(url string) (types.DomainInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[url]
	if !ok {
		return types.DomainInfo{}, false
	}
	return el.Value.(*cacheEntry).info, true
}

// Put stores info for url. An existing key keeps its insertion position.
func (c *Cache) Put(url string, info types.DomainInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[url]; ok {
		el.Value.(*cacheEntry).info = info
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).url)
	}
	c.entries[url] = c.order.PushBack(&cacheEntry{url: url, info: info})
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Resolver classifies URLs, consulting a Cache first.
type Resolver struct {
	mode  Mode
	cache *Cache
}

// NewResolver returns a Resolver backed by a cache of the given size.
func NewResolver(mode Mode, cacheSize int) *Resolver {
	return &Resolver{mode: mode, cache: NewCache(cacheSize)}
}

// Resolve returns the DomainInfo of url. Failures are not cached.
func (r *Resolver) Resolve(url string) (types.DomainInfo, error) {
	if info, ok := r.cache.Get(url); ok {
		return info, nil
	}
	info, err := Parse(url, r.mode)
	if err != nil {
		return types.DomainInfo{}, err
	}
	r.cache.Put(url, info)
	return info, nil
}

// Cache exposes the underlying cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}
