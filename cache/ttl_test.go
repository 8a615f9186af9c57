package cache_test

import (
	"testing"
	"time"

	"github.com/revierkompass/revierkompass/cache"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := cache.NewTTL[string, int](24*time.Hour, cache.WithClock(clock.Now))

	c.Set("a", 1)

	clock.Advance(23*time.Hour + 59*time.Minute)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit with 1, got %d %v", v, ok)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to be expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be purged, len %d", c.Len())
	}
}

func TestTTLOverwriteRefreshes(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := cache.NewTTL[string, int](time.Hour, cache.WithClock(clock.Now))

	c.Set("a", 1)
	clock.Advance(50 * time.Minute)
	c.Set("a", 2)
	clock.Advance(50 * time.Minute)

	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("expected refreshed entry with 2, got %d %v", v, ok)
	}
}

func TestTTLMiss(t *testing.T) {
	c := cache.NewTTL[string, int](time.Hour)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}
