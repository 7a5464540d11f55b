// Package cache keeps built CFG snapshots keyed by source content and build
// options, with msgpack persistence to disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/pycfg/pkg/cfg"
)

// DefaultSize is the number of snapshots kept when no size is configured.
const DefaultSize = 256

// Entry is a cached snapshot with metadata.
type Entry struct {
	Key       string        `msgpack:"key"`
	Snapshot  *cfg.Snapshot `msgpack:"snapshot"`
	CreatedAt time.Time     `msgpack:"created_at"`
}

// Stats reports cache usage.
type Stats struct {
	Length    int   `json:"length"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// Cache is an LRU of snapshots. It is safe for concurrent use.
type Cache struct {
	lru    *lru.Cache[string, Entry]
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most size snapshots. size <= 0 selects
// DefaultSize.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Key derives a cache key from source bytes and any option strings that
// change the built graph.
func Key(src []byte, opts ...string) string {
	h := sha256.New()
	h.Write(src)
	for _, opt := range opts {
		h.Write([]byte{0})
		h.Write([]byte(opt))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the snapshot stored under key.
func (c *Cache) Get(key string) (*cfg.Snapshot, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.Snapshot, true
}

// Put stores a snapshot, evicting the least recently used entry when full.
func (c *Cache) Put(key string, snap *cfg.Snapshot) {
	c.lru.Add(key, Entry{Key: key, Snapshot: snap, CreatedAt: time.Now()})
}

// Delete removes a key from the cache.
func (c *Cache) Delete(key string) {
	c.lru.Remove(key)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats returns the current cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Length:    c.lru.Len(),
		HitCount:  c.hits.Load(),
		MissCount: c.misses.Load(),
	}
}

// HitRate returns the cache hit rate.
func (c *Cache) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Save persists the cache to a writer using msgpack, oldest entry first.
func (c *Cache) Save(w io.Writer) error {
	keys := c.lru.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.lru.Peek(k); ok {
			entries = append(entries, e)
		}
	}
	return msgpack.NewEncoder(w).Encode(entries)
}

// Load replaces the cache contents with entries read from r.
func (c *Cache) Load(r io.Reader) error {
	var entries []Entry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.lru.Purge()
	for _, e := range entries {
		if e.Key == "" || e.Snapshot == nil {
			continue
		}
		c.lru.Add(e.Key, e)
	}
	return nil
}

// PersistToFile saves the cache to a file, creating its directory.
func PersistToFile(c *Cache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return c.Save(f)
}

// LoadFromFile loads the cache from a file.
func LoadFromFile(c *Cache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache file is not an error
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}
