package cache

import (
	"sort"
	"time"
)

// Bounded is a TTL store with a capacity bound. When an insert pushes the
// store above maxEntries, the evictBatch oldest entries (by insertion
// timestamp) are removed in one pass.
type Bounded[K comparable, V any] struct {
	*TTL[K, V]
	maxEntries int
	evictBatch int
}

func NewBounded[K comparable, V any](ttl time.Duration, maxEntries, evictBatch int, opts ...Option) *Bounded[K, V] {
	return &Bounded[K, V]{
		TTL:        NewTTL[K, V](ttl, opts...),
		maxEntries: maxEntries,
		evictBatch: evictBatch,
	}
}

var _ Store[string, any] = (*Bounded[string, any])(nil)

func (c *Bounded[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m[key] = entry[V]{Value: value, Timestamp: c.now()}
	if len(c.m) <= c.maxEntries {
		return
	}

	type aged struct {
		key K
		ts  time.Time
	}
	all := make([]aged, 0, len(c.m))
	for k, e := range c.m {
		all = append(all, aged{key: k, ts: e.Timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	n := c.evictBatch
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.m, a.key)
	}
}
