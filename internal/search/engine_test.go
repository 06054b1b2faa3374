package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/memvault-mcp/internal/cache"
	"github.com/dshills/memvault-mcp/internal/codec"
	"github.com/dshills/memvault-mcp/pkg/types"
)

type fixture struct {
	dir    string
	engine *Engine
	seq    int
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	dir := t.TempDir()
	c := cache.New(zerolog.Nop())
	return &fixture{dir: dir, engine: New(dir, c, limit, zerolog.Nop())}
}

// add writes a record with a strictly increasing timestamp so creation
// order is unambiguous in ranking tests.
func (f *fixture) add(t *testing.T, id string, topics []string, agent, user, content string) {
	t.Helper()
	f.seq++
	ts := time.Date(2026, 8, 23, 10, 0, f.seq, 0, time.UTC)
	rec := &types.Record{
		ID:        id,
		Timestamp: ts,
		Agent:     agent,
		User:      user,
		Topics:    topics,
		Content:   content,
	}
	name := ts.Format("20060102_150405") + "_" + id + ".md"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), codec.Encode(rec), 0o644))
}

func (f *fixture) search(t *testing.T, keywords ...string) []types.SearchResult {
	t.Helper()
	results, err := f.engine.Search(context.Background(), Request{Keywords: keywords})
	require.NoError(t, err)
	return results
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestScoringFormula(t *testing.T) {
	f := newFixture(t, 25)
	// topic_hits("go")=1 -> 2, content_hits("go")=4 (go, going, gogo x2),
	// user_hit=1 (gopher), agent_hit=0, exact_bonus=1 (whole word "go").
	f.add(t, "a1b2c3d4", []string{"golang"}, "claude", "gopher", "go going gogo")

	results := f.search(t, "go")
	require.Len(t, results, 1)
	assert.Equal(t, 8, results[0].Score)
	assert.Equal(t, []string{"go"}, results[0].MatchingKeywords)
}

func TestContentHitsCountSubstringOccurrences(t *testing.T) {
	f := newFixture(t, 25)
	// strings.Count semantics: "aa" occurs twice in "aaaa". No topics, no
	// label hits, no whole-word bonus ("aa" is embedded in "aaaa").
	f.add(t, "a1b2c3d4", nil, "agent", "user", "aaaa")

	results := f.search(t, "aa")
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Score)
}

func TestExactBonusRequiresWordBoundaries(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", nil, "agent", "user", "the cache layer")  // whole word
	f.add(t, "00000002", nil, "agent", "user", "the cached layer") // embedded only

	results := f.search(t, "cache")
	require.Len(t, results, 2)
	byID := map[string]int{}
	for _, r := range results {
		byID[r.ID] = r.Score
	}
	assert.Equal(t, 2, byID["00000001"]) // content hit + exact bonus
	assert.Equal(t, 1, byID["00000002"]) // content hit only
}

func TestTopicRankingProperty(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000003", []string{"alpha", "beta"}, "agent", "user", "filler")
	f.add(t, "00000002", []string{"beta"}, "agent", "user", "filler")
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")

	results := f.search(t, "alpha")
	got := ids(results)
	assert.Contains(t, got, "00000001")
	assert.Contains(t, got, "00000003")
	assert.NotContains(t, got, "00000002")

	// Both match only via the alpha topic, so the first record must rank
	// at least as high as the third.
	var first, third int
	for i, id := range got {
		switch id {
		case "00000001":
			first = i
		case "00000003":
			third = i
		}
	}
	assert.LessOrEqual(t, first, third)
}

func TestCaseInsensitivity(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"Alpha"}, "Claude", "Dave", "ALPHA content")
	f.add(t, "00000002", []string{"other"}, "agent", "user", "unrelated")

	upper := f.search(t, "ALPHA")
	lower := f.search(t, "alpha")
	assert.Equal(t, lower, upper)
	require.Len(t, lower, 1)
	assert.Equal(t, "00000001", lower[0].ID)
}

func TestRankingScoreThenRecency(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "alpha alpha alpha") // higher score
	f.add(t, "00000002", []string{"alpha"}, "agent", "user", "filler")            // older of the tie
	f.add(t, "00000003", []string{"alpha"}, "agent", "user", "filler")            // newer of the tie

	results := f.search(t, "alpha")
	require.Len(t, results, 3)
	assert.Equal(t, "00000001", results[0].ID)
	// Equal scores: the later-created record appears first.
	assert.Equal(t, "00000003", results[1].ID)
	assert.Equal(t, "00000002", results[2].ID)
}

func TestLimitTruncates(t *testing.T) {
	f := newFixture(t, 2)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")
	f.add(t, "00000002", []string{"alpha"}, "agent", "user", "filler")
	f.add(t, "00000003", []string{"alpha"}, "agent", "user", "filler")

	results := f.search(t, "alpha")
	assert.Len(t, results, 2)
}

func TestEmptyKeywordsYieldEmptyResult(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")

	results := f.search(t)
	assert.Empty(t, results)

	results = f.search(t, "", "   ")
	assert.Empty(t, results)
}

func TestZeroScoreExcluded(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")

	results := f.search(t, "nomatch")
	assert.Empty(t, results)
}

func TestMatchingKeywordsAreDistinctContributors(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "beta beta")

	results := f.search(t, "alpha", "beta", "gamma", "alpha")
	require.Len(t, results, 1)
	assert.Equal(t, []string{"alpha", "beta"}, results[0].MatchingKeywords)
}

func TestMalformedRecordSkipped(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "20260823_100000_deadbeef.md"), []byte("garbage"), 0o644))

	results := f.search(t, "alpha")
	require.Len(t, results, 1)
	assert.Equal(t, "00000001", results[0].ID)
}

func TestResponseCache(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")

	ctx := context.Background()
	req := Request{Keywords: []string{"alpha"}, UseCache: true, CacheTTL: time.Minute}

	first, err := f.engine.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A record added after the response was memoized is invisible until
	// the entry expires; keyword order must not matter for the key.
	f.add(t, "00000002", []string{"alpha"}, "agent", "user", "filler")

	second, err := f.engine.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Without the cache the new record shows up immediately.
	fresh, err := f.engine.Search(ctx, Request{Keywords: []string{"alpha"}})
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestCachedResponseIsolatedFromCallerMutation(t *testing.T) {
	f := newFixture(t, 25)
	f.add(t, "00000001", []string{"alpha"}, "agent", "user", "filler")

	ctx := context.Background()
	req := Request{Keywords: []string{"alpha"}, UseCache: true, CacheTTL: time.Minute}

	first, err := f.engine.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Scribbling on a returned result must not leak into the memoized
	// response handed to later callers.
	first[0].ID = "corrupted"
	first[0].Score = -1

	second, err := f.engine.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "00000001", second[0].ID)
	assert.Positive(t, second[0].Score)
}
