package match

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeywordHit is a keyword found in the text together with its weight.
type KeywordHit struct {
	Keyword string `json:"keyword"`
	Weight  int    `json:"weight"`
}

func (h KeywordHit) String() string {
	return fmt.Sprintf("%s (x%d)", h.Keyword, h.Weight)
}

// KeywordMatch is the outcome of scoring one text.
type KeywordMatch struct {
	Matched bool
	Hits    []KeywordHit
	Score   int
}

type keywordEntry struct {
	display string
	folded  string
	weight  int
}

// KeywordScorer scores text against a weighted keyword table.
type KeywordScorer struct {
	entries  []keywordEntry
	minScore int
}

// NewKeywordScorer builds a scorer. Keywords repeating an earlier entry
// (case-insensitively) are ignored so each term counts once.
func NewKeywordScorer(keywords []Keyword, minScore int) *KeywordScorer {
	seen := make(map[string]struct{}, len(keywords))
	entries := make([]keywordEntry, 0, len(keywords))

	for _, kw := range keywords {
		display := strings.TrimSpace(kw.Keyword)
		folded := strings.ToLower(display)
		if folded == "" || kw.Weight <= 0 {
			continue
		}
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		entries = append(entries, keywordEntry{display: display, folded: folded, weight: kw.Weight})
	}

	return &KeywordScorer{entries: entries, minScore: minScore}
}

// Score tests every keyword for containment in text. Hits are listed in the
// table's declared order.
func (s *KeywordScorer) Score(text string) KeywordMatch {
	folded := strings.ToLower(text)

	var result KeywordMatch
	for _, e := range s.entries {
		if !strings.Contains(folded, e.folded) {
			continue
		}
		result.Hits = append(result.Hits, KeywordHit{Keyword: e.display, Weight: e.weight})
		result.Score += e.weight
	}

	result.Matched = len(result.Hits) > 0
	if s.minScore > 0 {
		result.Matched = result.Matched && result.Score > s.minScore
	}

	return result
}

// Fingerprint identifies the scored table: the folded keywords and weights
// in declared order. The minimum score is left out since it never changes
// the score itself.
func (s *KeywordScorer) Fingerprint() string {
	h := sha256.New()
	for _, e := range s.entries {
		fmt.Fprintf(h, "%s\x00%d\n", e.folded, e.weight)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Len returns the number of distinct keywords.
func (s *KeywordScorer) Len() int {
	return len(s.entries)
}
