package match

import (
	"strings"

	"github.com/spigell/tender-matcher/internal/tender"
)

// TaxonomyMatcher matches classification codes by their fixed-length prefix.
type TaxonomyMatcher struct {
	scheme   string
	prefixes map[string]struct{}
}

func NewTaxonomyMatcher(scheme string, prefixes []string) *TaxonomyMatcher {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = DefaultTaxonomyScheme
	}

	set := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}

	return &TaxonomyMatcher{scheme: scheme, prefixes: set}
}

// Match returns the codes whose scheme is the taxonomy scheme and whose
// prefix is configured, in the order they appear on the opportunity.
func (m *TaxonomyMatcher) Match(codes []tender.Classification) (bool, []string) {
	if len(m.prefixes) == 0 {
		return false, nil
	}

	var matched []string
	for _, c := range codes {
		if !strings.EqualFold(strings.TrimSpace(c.Scheme), m.scheme) {
			continue
		}

		code := strings.TrimSpace(c.Code)
		if len(code) < PrefixLength {
			continue
		}

		if _, ok := m.prefixes[code[:PrefixLength]]; ok {
			matched = append(matched, code)
		}
	}

	return len(matched) > 0, matched
}
