package cache

import (
	"sync"
	"time"
)

// TTL is a mutex-guarded map whose entries expire after a fixed duration.
type TTL[K comparable, V any] struct {
	mu  sync.RWMutex
	m   map[K]entry[V]
	ttl time.Duration
	now Clock
}

func NewTTL[K comparable, V any](ttl time.Duration, opts ...Option) *TTL[K, V] {
	options := loadOptions(opts...)
	return &TTL[K, V]{
		m:   make(map[K]entry[V]),
		ttl: ttl,
		now: options.clock,
	}
}

var _ Store[string, any] = (*TTL[string, any])(nil)

// Get returns the value only while its age is strictly below the TTL.
// An expired entry is deleted on the spot and reported as absent.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if now.Sub(e.Timestamp) >= c.ttl {
		c.mu.Lock()
		if e2, ok := c.m[key]; ok && e2.Timestamp.Equal(e.Timestamp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Set stores value under key, unconditionally overwriting any prior entry.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry[V]{Value: value, Timestamp: c.now()}
}

func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
