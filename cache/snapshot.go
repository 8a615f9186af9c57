package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Snapshots persist a TTL store across restarts. Caching is best effort:
// callers are expected to log snapshot errors and carry on with an empty
// store.

type record[K comparable, V any] struct {
	Key       K     `json:"key"`
	Value     V     `json:"value"`
	Timestamp int64 `json:"timestamp"`
}

// SaveSnapshot writes all live entries to path as JSON, zstd-compressed
// when path ends in .zst.
func SaveSnapshot[K comparable, V any](c *TTL[K, V], path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		w = enc
	}

	c.mu.RLock()
	records := make([]record[K, V], 0, len(c.m))
	now := c.now()
	for k, e := range c.m {
		if now.Sub(e.Timestamp) >= c.ttl {
			continue
		}
		records = append(records, record[K, V]{Key: k, Value: e.Value, Timestamp: e.Timestamp.UnixMilli()})
	}
	c.mu.RUnlock()

	if err := json.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if enc != nil {
		return enc.Close()
	}
	return nil
}

// LoadSnapshot merges a previously saved snapshot into c, skipping
// entries that have expired since the save.
func LoadSnapshot[K comparable, V any](c *TTL[K, V], path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var records []record[K, V]
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, rec := range records {
		ts := time.UnixMilli(rec.Timestamp)
		if now.Sub(ts) >= c.ttl {
			continue
		}
		c.m[rec.Key] = entry[V]{Value: rec.Value, Timestamp: ts}
	}
	return nil
}
