package search

import (
	"crypto/sha256"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/memvault-mcp/pkg/types"
)

const (
	responseCacheSize  = 256
	defaultResponseTTL = 5 * time.Second
)

type responseEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

// responseCache memoizes whole search responses keyed by a digest of the
// normalized keyword set. Entries expire quickly: a memoized response must
// not hide a record created moments ago, so the cache only smooths bursts
// of identical queries.
type responseCache struct {
	lru *lru.Cache[[32]byte, *responseEntry]
}

func newResponseCache() *responseCache {
	c, err := lru.New[[32]byte, *responseEntry](responseCacheSize)
	if err != nil {
		// Only possible with a non-positive size.
		panic(err)
	}
	return &responseCache{lru: c}
}

func cacheKey(keywords []string) [32]byte {
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	// Normalized keywords are already lowercase; sorting makes the key
	// order-independent.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
}

func (c *responseCache) get(keywords []string) ([]types.SearchResult, bool) {
	key := cacheKey(keywords)
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	// Hand out a copy so a caller mutating its results cannot corrupt the
	// memoized response for later callers.
	out := make([]types.SearchResult, len(e.results))
	copy(out, e.results)
	return out, true
}

func (c *responseCache) put(keywords []string, results []types.SearchResult, ttl time.Duration) {
	c.lru.Add(cacheKey(keywords), &responseEntry{
		results:   results,
		expiresAt: time.Now().Add(ttl),
	})
}
