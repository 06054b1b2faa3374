package search

import "strings"

// keywordScore computes the weighted score a single lowercased keyword
// contributes against pre-lowercased field values:
//
//	2*topic_hits + content_hits + user_hit + agent_hit + exact_bonus
//
// content_hits counts substring occurrences, so a short keyword inside a
// longer unrelated token still counts. That emphasis is a documented
// characteristic of the scoring formula, kept as-is.
func keywordScore(k string, topics []string, content, user, agent string) int {
	score := 0
	for _, topic := range topics {
		if strings.Contains(topic, k) {
			score += 2
		}
	}
	score += strings.Count(content, k)
	if strings.Contains(user, k) {
		score++
	}
	if strings.Contains(agent, k) {
		score++
	}
	if containsWholeWord(content, k) {
		score++
	}
	return score
}

// containsWholeWord reports whether k occurs in s bounded by non-word
// characters or string edges on both sides. Word characters are ASCII
// letters, digits, and underscore.
func containsWholeWord(s, k string) bool {
	if k == "" {
		return false
	}
	for i := 0; ; {
		j := strings.Index(s[i:], k)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(k)
		if (start == 0 || !isWordChar(s[start-1])) && (end == len(s) || !isWordChar(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z') ||
		('0' <= b && b <= '9')
}

// normalizeKeywords lowercases, trims, de-duplicates, and drops empty
// keywords while preserving the caller's order.
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	var out []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
