// File: internal/infra/cache/ttl.go
package cache

import (
	"sync"
	"time"
)

// Cache is a minimal in-process {value, expiresAt} cache for values that are
// expensive to fetch and change rarely (e.g. the bot identity). Invalidate
// must be called on the event that changes the underlying secret/token.
type Cache[T any] struct {
	mu        sync.RWMutex
	value     T
	expiresAt time.Time
	ttl       time.Duration
}

func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl}
}

func (c *Cache[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.expiresAt.IsZero() || time.Now().After(c.expiresAt) {
		var zero T
		return zero, false
	}
	return c.value, true
}

func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.expiresAt = time.Now().Add(c.ttl)
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.expiresAt = time.Time{}
}
