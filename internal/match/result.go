package match

import (
	"github.com/spigell/tender-matcher/internal/tender"
)

// Reason names the signal that decided a positive verdict.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonRules      Reason = "rules"
	ReasonModel      Reason = "model"
	ReasonEscalation Reason = "keyword_escalation"
)

// Decision is the verdict for one opportunity with its explanation.
type Decision struct {
	Taxonomy     bool     `json:"taxonomy"`
	MatchedCodes []string `json:"matched_codes,omitempty"`

	Keyword         bool         `json:"keyword"`
	MatchedKeywords []KeywordHit `json:"matched_keywords,omitempty"`
	Score           int          `json:"score"`

	Value bool `json:"value"`

	ModelAvailable bool `json:"model_available"`
	Model          bool `json:"model"`

	Final  bool   `json:"final"`
	Reason Reason `json:"reason,omitempty"`
}

// Rule is the OR of the three rule-based signals.
func (d Decision) Rule() bool {
	return d.Taxonomy || d.Keyword || d.Value
}

// Review is an optional LLM opinion attached to a match for the reports.
type Review struct {
	Fit    bool    `json:"fit"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Result is the annotated view of an opportunity as it moves through the
// pipeline. The opportunity itself is never modified.
type Result struct {
	Opportunity *tender.Opportunity `json:"opportunity"`
	// Index is the discovery position in the fetched batch.
	Index    int      `json:"index"`
	Decision Decision `json:"decision"`
	Review   *Review  `json:"review,omitempty"`
}

// Key returns the deduplication identifier of the underlying opportunity.
func (r *Result) Key() string {
	return r.Opportunity.Key()
}

// Results is an ordered collection of results.
type Results struct {
	Items []*Result
}

// NewResults wraps a fetched batch, recording discovery order.
func NewResults(batch *tender.Opportunities) *Results {
	items := make([]*Result, 0, batch.Len())
	for i, o := range batch.Items {
		items = append(items, &Result{Opportunity: o, Index: i})
	}
	return &Results{Items: items}
}

func (r *Results) Len() int {
	return len(r.Items)
}

// Opportunities returns the underlying records in current order.
func (r *Results) Opportunities() []*tender.Opportunity {
	out := make([]*tender.Opportunity, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, item.Opportunity)
	}
	return out
}

// Keys returns the identifiers in current order.
func (r *Results) Keys() []string {
	out := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, item.Key())
	}
	return out
}

// Retain keeps the items keep returns true for, preserving order, and
// returns the identifiers of the dropped ones.
func (r *Results) Retain(keep func(*Result) bool) []string {
	kept := r.Items[:0]
	var dropped []string

	for _, item := range r.Items {
		if keep(item) {
			kept = append(kept, item)
			continue
		}
		dropped = append(dropped, item.Key())
	}

	for i := len(kept); i < len(r.Items); i++ {
		r.Items[i] = nil
	}
	r.Items = kept

	return dropped
}
