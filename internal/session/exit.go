package session

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultExitPhrases are the phrases that end a dialogue, matching the
// default wake-word vocabulary: a mix of Chinese and English farewells.
var DefaultExitPhrases = []string{"谢谢", "再见", "结束", "退下", "exit", "quit", "bye"}

// ExitMatcher decides whether a transcript carries the intent to end the
// conversation.
//
// The first stage is a case-insensitive substring match of every configured
// phrase against the transcript. Substring matching deliberately ignores word
// boundaries — "再见" must hit inside "谢谢，再见" where no separator exists —
// at the cost of occasional over-matches like "exit" inside "exited".
//
// An optional second stage catches near-miss ASR spellings: each
// whitespace-separated transcript token is compared to each phrase with
// Jaro-Winkler similarity, and a score at or above the configured threshold
// counts as a match. A threshold of 0 disables the stage.
type ExitMatcher struct {
	phrases        []string
	fuzzyThreshold float64
}

// NewExitMatcher builds a matcher over phrases. Phrases are folded to lower
// case once at construction; empty entries are dropped. A nil or empty slice
// falls back to [DefaultExitPhrases]. fuzzyThreshold enables the Jaro-Winkler
// stage when in (0, 1].
func NewExitMatcher(phrases []string, fuzzyThreshold float64) *ExitMatcher {
	if len(phrases) == 0 {
		phrases = DefaultExitPhrases
	}
	folded := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			folded = append(folded, p)
		}
	}
	return &ExitMatcher{phrases: folded, fuzzyThreshold: fuzzyThreshold}
}

// Match reports whether text carries exit intent and, when it does, the
// phrase that matched. The substring stage wins over the fuzzy stage; within
// a stage the first configured phrase wins.
func (m *ExitMatcher) Match(text string) (string, bool) {
	folded := strings.ToLower(text)
	for _, p := range m.phrases {
		if strings.Contains(folded, p) {
			return p, true
		}
	}

	if m.fuzzyThreshold <= 0 {
		return "", false
	}
	for _, token := range strings.Fields(folded) {
		token = strings.Trim(token, ".,!?;:\"'，。！？；：")
		if token == "" {
			continue
		}
		for _, p := range m.phrases {
			if matchr.JaroWinkler(token, p, false) >= m.fuzzyThreshold {
				return p, true
			}
		}
	}
	return "", false
}
