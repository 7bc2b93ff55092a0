// Package cache provides the in-memory cache bound by the composition engine
// and an HTTP response-caching middleware built on it.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache wraps go-cache. It is safe for concurrent use.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache whose entries expire after defaultTTL and are swept
// every cleanupInterval.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores value with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Flush removes every item.
func (c *Cache) Flush() {
	c.store.Flush()
}

func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}
