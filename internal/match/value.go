package match

import (
	"github.com/shopspring/decimal"

	"github.com/spigell/tender-matcher/internal/tender"
)

// ValueMatcher checks amounts against a minimum contract value.
type ValueMatcher struct {
	threshold *decimal.Decimal
}

func NewValueMatcher(threshold *decimal.Decimal) *ValueMatcher {
	return &ValueMatcher{threshold: threshold}
}

// Match reports whether any valid amount reaches the threshold. Without a
// threshold nothing matches.
func (m *ValueMatcher) Match(amounts []tender.Amount) bool {
	if m.threshold == nil {
		return false
	}

	for _, a := range amounts {
		if !a.Valid {
			continue
		}
		if a.Value.GreaterThanOrEqual(*m.threshold) {
			return true
		}
	}

	return false
}
