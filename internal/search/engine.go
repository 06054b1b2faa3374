// Package search implements the relevance engine: it scans every record in
// the store directory through the parse cache, scores each against a
// keyword set, and returns a ranked, bounded result list.
package search

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/memvault-mcp/internal/cache"
	"github.com/dshills/memvault-mcp/pkg/types"
)

// Request contains the parameters for one search pass. Keywords are
// matched case-insensitively; the result bound is the engine's configured
// limit, not per-request.
type Request struct {
	Keywords []string
	UseCache bool          // memoize the whole response (off by default)
	CacheTTL time.Duration // expiry for a memoized response
}

// Engine scores records against keyword sets.
type Engine struct {
	dir       string
	cache     *cache.Cache
	limit     int
	log       zerolog.Logger
	responses *responseCache
}

// New creates an Engine over the record files in dir, parsing through c
// and truncating results to limit.
func New(dir string, c *cache.Cache, limit int, log zerolog.Logger) *Engine {
	return &Engine{
		dir:       dir,
		cache:     c,
		limit:     limit,
		log:       log.With().Str("component", "search").Logger(),
		responses: newResponseCache(),
	}
}

// Search scores every parseable record against the request keywords and
// returns the top matches ordered by score descending, then creation time
// descending. Records that fail to parse are skipped with a warning; an
// empty keyword set yields an empty result.
func (e *Engine) Search(ctx context.Context, req Request) ([]types.SearchResult, error) {
	keywords := normalizeKeywords(req.Keywords)
	if len(keywords) == 0 {
		return []types.SearchResult{}, nil
	}

	if req.UseCache {
		if results, ok := e.responses.get(keywords); ok {
			return results, nil
		}
	}

	files, err := filepath.Glob(filepath.Join(e.dir, "*.md"))
	if err != nil {
		return nil, &types.StorageError{Op: "scan", Err: err}
	}

	results := make([]types.SearchResult, 0, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec, err := e.cache.Get(path)
		if err != nil {
			if types.IsParseError(err) {
				e.log.Warn().Str("file", filepath.Base(path)).Err(err).Msg("skipping malformed record")
			}
			// Files that vanished mid-scan are skipped silently.
			continue
		}
		if total, matching := e.scoreRecord(rec, keywords); total > 0 {
			results = append(results, types.SearchResult{
				ID:               rec.ID,
				Timestamp:        rec.Timestamp,
				Score:            total,
				MatchingKeywords: matching,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.After(results[j].Timestamp)
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > e.limit {
		results = results[:e.limit]
	}

	if req.UseCache {
		ttl := req.CacheTTL
		if ttl <= 0 {
			ttl = defaultResponseTTL
		}
		e.responses.put(keywords, results, ttl)
	}
	return results, nil
}

// scoreRecord sums the per-keyword scores for one record and collects the
// distinct keywords that contributed.
func (e *Engine) scoreRecord(rec *types.Record, keywords []string) (int, []string) {
	content := strings.ToLower(rec.Content)
	user := strings.ToLower(rec.User)
	agent := strings.ToLower(rec.Agent)
	topics := make([]string, len(rec.Topics))
	for i, t := range rec.Topics {
		topics[i] = strings.ToLower(t)
	}

	total := 0
	var matching []string
	for _, k := range keywords {
		if s := keywordScore(k, topics, content, user, agent); s > 0 {
			total += s
			matching = append(matching, k)
		}
	}
	return total, matching
}
