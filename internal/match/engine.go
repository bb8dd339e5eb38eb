package match

import (
	"context"
	"fmt"

	"github.com/spigell/tender-matcher/internal/tender"
)

// Predictor produces one relevance prediction per opportunity of a batch.
type Predictor interface {
	Predict(ctx context.Context, batch []*tender.Opportunity) ([]bool, error)
}

// Escalation combines the rule verdict with a model prediction. Precedence
// is rules, then the model, then the keyword score safety net. A threshold
// of zero or less disables the safety net.
type Escalation struct {
	Threshold int
}

// Combine returns the final verdict and the signal that decided it. A nil
// prediction means no model is available and only the rules count.
func (e Escalation) Combine(rule bool, prediction *bool, score int) (bool, Reason) {
	if rule {
		return true, ReasonRules
	}
	if prediction == nil {
		return false, ReasonNone
	}
	if *prediction {
		return true, ReasonModel
	}
	if e.Threshold > 0 && score >= e.Threshold {
		return true, ReasonEscalation
	}
	return false, ReasonNone
}

// Engine decides relevance for opportunities. It holds no mutable state.
type Engine struct {
	taxonomy   *TaxonomyMatcher
	keywords   *KeywordScorer
	value      *ValueMatcher
	escalation Escalation
}

func NewEngine(cfg FilterConfig) *Engine {
	return &Engine{
		taxonomy:   NewTaxonomyMatcher(cfg.TaxonomyScheme, cfg.TaxonomyPrefixes),
		keywords:   NewKeywordScorer(cfg.Keywords, cfg.KeywordMinScore),
		value:      NewValueMatcher(cfg.MinAmount),
		escalation: Escalation{Threshold: cfg.EscalationThreshold},
	}
}

// Keywords exposes the scorer so the feature extractor scores exactly like the engine.
func (e *Engine) Keywords() *KeywordScorer {
	return e.keywords
}

func (e *Engine) EscalationThreshold() int {
	return e.escalation.Threshold
}

// Decide evaluates a single opportunity.
func (e *Engine) Decide(o *tender.Opportunity, prediction *bool) Decision {
	var d Decision

	d.Taxonomy, d.MatchedCodes = e.taxonomy.Match(o.Classifications)

	kw := e.keywords.Score(o.SearchText())
	d.Keyword, d.MatchedKeywords, d.Score = kw.Matched, kw.Hits, kw.Score

	d.Value = e.value.Match(o.Amounts)

	if prediction != nil {
		d.ModelAvailable = true
		d.Model = *prediction
	}

	d.Final, d.Reason = e.escalation.Combine(d.Rule(), prediction, d.Score)

	return d
}

// DecideBatch evaluates a batch. predictions may be nil (rule-only); when
// present it must line up with batch.
func (e *Engine) DecideBatch(batch []*tender.Opportunity, predictions []bool) ([]Decision, error) {
	if predictions != nil && len(predictions) != len(batch) {
		return nil, fmt.Errorf("got %d predictions for %d opportunities", len(predictions), len(batch))
	}

	decisions := make([]Decision, 0, len(batch))
	for i, o := range batch {
		var prediction *bool
		if predictions != nil {
			p := predictions[i]
			prediction = &p
		}
		decisions = append(decisions, e.Decide(o, prediction))
	}

	return decisions, nil
}
