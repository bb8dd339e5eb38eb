// Package match holds the rule-based relevance signals and the decision
// engine that combines them with an optional classifier prediction.
package match

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultTaxonomyScheme is the classification scheme matched when none is configured.
	DefaultTaxonomyScheme = "UNSPSC"
	// DefaultEscalationThreshold forces a match at this keyword score when a model is in use.
	DefaultEscalationThreshold = 5
	// PrefixLength is the number of leading code characters compared against prefixes.
	PrefixLength = 4
)

// Keyword is a single weighted entry of the keyword table.
type Keyword struct {
	Keyword string `mapstructure:"keyword" json:"keyword" yaml:"keyword"`
	Weight  int    `mapstructure:"weight" json:"weight" yaml:"weight"`
}

// FilterConfig is the full set of matching criteria for a run. It is passed
// explicitly to every scorer.
type FilterConfig struct {
	TaxonomyScheme   string
	TaxonomyPrefixes []string
	TaxonomyLabels   map[string]string
	// Keywords keeps the declared order; matched keywords are reported in it.
	Keywords        []Keyword
	KeywordMinScore int
	// MinAmount nil means no value criterion; the value signal never fires.
	MinAmount           *decimal.Decimal
	EscalationThreshold int
}

// Validate rejects tables that cannot be scored.
func (c *FilterConfig) Validate() error {
	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw.Keyword) == "" {
			return fmt.Errorf("keyword #%d is empty", i)
		}
		if kw.Weight <= 0 {
			return fmt.Errorf("keyword %q: weight must be positive, got %d", kw.Keyword, kw.Weight)
		}
	}

	for _, prefix := range c.TaxonomyPrefixes {
		if len(strings.TrimSpace(prefix)) != PrefixLength {
			return fmt.Errorf("taxonomy prefix %q must be %d characters", prefix, PrefixLength)
		}
	}

	if c.KeywordMinScore < 0 {
		return fmt.Errorf("keyword minimum score must not be negative")
	}

	return nil
}

// Label returns the configured human name for the prefix of code, if any.
func (c *FilterConfig) Label(code string) string {
	if len(code) < PrefixLength || c.TaxonomyLabels == nil {
		return ""
	}
	return c.TaxonomyLabels[code[:PrefixLength]]
}
