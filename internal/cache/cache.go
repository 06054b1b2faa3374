// Package cache memoizes parsed records keyed by file path and
// modification time, so repeated searches do not re-decode unchanged
// files. Parse failures are memoized the same way as successes: a corrupt
// file is re-read only when it changes.
package cache

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/memvault-mcp/internal/codec"
	"github.com/dshills/memvault-mcp/pkg/types"
)

type entry struct {
	modTime time.Time
	rec     *types.Record
	err     error // non-nil when the file decoded to a ParseError
}

// Cache is an explicit object with an injectable lifecycle, not a process
// global. Reads share the lock; only a re-parse takes it exclusively, so
// concurrent searches proceed in parallel on cache hits.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	log     zerolog.Logger
}

// New creates an empty cache.
func New(log zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// Get returns the parse result for path, reusing the cached result when
// the file's modification time is unchanged. A file that no longer exists
// has its entry dropped and the stat error returned.
func (c *Cache) Get(path string) (*types.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && e.modTime.Equal(info.ModTime()) {
		return e.rec, e.err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Invalidate(path)
		}
		return nil, err
	}

	rec, decodeErr := codec.Decode(data)
	if pe, ok := decodeErr.(*types.ParseError); ok {
		pe.Path = path
	}

	c.mu.Lock()
	c.entries[path] = entry{modTime: info.ModTime(), rec: rec, err: decodeErr}
	c.mu.Unlock()

	return rec, decodeErr
}

// Invalidate drops the entry for path, if any.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
