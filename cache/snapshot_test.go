package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/revierkompass/revierkompass/cache"
)

func TestSnapshotRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json.zst")
	clock := &fakeClock{now: time.Now()}

	c := cache.NewTTL[string, []string](time.Hour, cache.WithClock(clock.Now))
	c.Set("stuttgart", []string{"a", "b"})
	c.Set("karlsruhe", []string{"c"})

	if err := cache.SaveSnapshot(c, path); err != nil {
		t.Fatal(err)
	}

	restored := cache.NewTTL[string, []string](time.Hour, cache.WithClock(clock.Now))
	if err := cache.LoadSnapshot(restored, path); err != nil {
		t.Fatal(err)
	}

	if restored.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", restored.Len())
	}
	v, ok := restored.Get("stuttgart")
	if !ok || len(v) != 2 || v[0] != "a" {
		t.Fatalf("expected [a b], got %v %v", v, ok)
	}
}

func TestSnapshotSkipsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	clock := &fakeClock{now: time.Now()}

	c := cache.NewTTL[string, int](time.Hour, cache.WithClock(clock.Now))
	c.Set("old", 1)

	if err := cache.SaveSnapshot(c, path); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Hour)
	restored := cache.NewTTL[string, int](time.Hour, cache.WithClock(clock.Now))
	if err := cache.LoadSnapshot(restored, path); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 0 {
		t.Fatalf("expected expired entries to be skipped, got %d", restored.Len())
	}
}

func TestSnapshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	c := cache.NewTTL[string, int](time.Hour)
	if err := cache.LoadSnapshot(c, path); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}
