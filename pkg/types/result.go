package types

import "time"

// SearchResult represents a single relevance search hit.
type SearchResult struct {
	ID               string
	Timestamp        time.Time
	Score            int      // weighted keyword score, always > 0 in results
	MatchingKeywords []string // distinct requested keywords that contributed
}

// RecallEntry is the per-identifier outcome of a recall operation. Exactly
// one of Record or Err is set; a failed identifier never fails the rest of
// the batch.
type RecallEntry struct {
	ID     string
	Record *Record
	Err    error
}
