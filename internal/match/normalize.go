// Package match reconciles chat-derived tasks against PM-tool tasks. Cheap
// signals run first (normalized title comparison), then embedding similarity
// over time-window-filtered candidates, with an LLM verdict reserved for the
// borderline band where embeddings alone are unreliable.
package match

import (
	"regexp"
	"strings"
)

var (
	punctPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases, strips punctuation, and collapses whitespace so
// titles that differ only in decoration compare equal.
func NormalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// containmentScore rates two normalized titles where one contains the other:
// the length ratio of the shorter to the longer. Returns 0 when neither
// contains the other.
func containmentScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter) / float64(longer)
}
