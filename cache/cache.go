// Package cache provides the TTL-bounded key/value stores backing the
// geocoding and routing aggregators. Entries are valid while
// now - timestamp < ttl; expired entries are treated as absent and
// purged lazily on read.
package cache

import "time"

// Clock abstracts time.Now so tests can substitute a fake clock.
type Clock func() time.Time

// Store is the contract shared by the cache implementations.
type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Len() int
}

type entry[V any] struct {
	Value     V         `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type options struct {
	clock Clock
}

type Option interface {
	apply(*options)
}

type clockOption Clock

func (c clockOption) apply(o *options) {
	o.clock = Clock(c)
}

// WithClock overrides the time source. Default: time.Now.
func WithClock(c Clock) Option {
	return clockOption(c)
}

func loadOptions(opts ...Option) options {
	options := options{
		clock: time.Now,
	}
	for _, o := range opts {
		o.apply(&options)
	}
	return options
}
