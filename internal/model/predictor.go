package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/tender-matcher/internal/features"
	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

// ErrUnavailable is returned when the artifact triple cannot be used.
var ErrUnavailable = errors.New("model unavailable")

// ErrKeywordMismatch means the configured keyword table differs from the
// one the model was trained with.
var ErrKeywordMismatch = errors.New("keyword table changed since training")

// Artifacts is the fitted triple produced by one training run.
type Artifacts struct {
	TrainingID string
	// Keywords is the fingerprint of the keyword table behind the score column.
	Keywords    string
	Classifier  *Classifier
	Description *features.Vocabulary
	Category    *features.Vocabulary
}

// Width is the feature width implied by the two vocabularies.
func (a *Artifacts) Width() int {
	return a.Description.Len() + a.Category.Len() + 1
}

// Validate checks that all three parts are present and agree on the layout.
func (a *Artifacts) Validate() error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: no artifacts", ErrUnavailable)
	case a.Classifier.Width() == 0:
		return fmt.Errorf("%w: classifier missing", ErrUnavailable)
	case a.Description.Len() == 0:
		return fmt.Errorf("%w: description vectorizer missing", ErrUnavailable)
	case a.Category.Len() == 0:
		return fmt.Errorf("%w: category vectorizer missing", ErrUnavailable)
	case a.Classifier.Width() != a.Width():
		return fmt.Errorf("%w: %w: classifier expects %d columns, vectorizers produce %d",
			ErrUnavailable, ErrDimensionMismatch, a.Classifier.Width(), a.Width())
	}
	return nil
}

// Predictor runs inference over already fitted artifacts. It only
// transforms; nothing reachable from it can fit a vocabulary.
type Predictor struct {
	extractor  *features.Extractor
	classifier *Classifier
}

var _ match.Predictor = (*Predictor)(nil)

// NewPredictor binds artifacts to the keyword scorer that provides the
// score column. A scorer built from a different keyword table than the one
// used in training makes the model unavailable.
func NewPredictor(a *Artifacts, keywords *match.KeywordScorer) (*Predictor, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if keywords == nil {
		return nil, errors.New("keyword scorer is required")
	}
	if got := keywords.Fingerprint(); a.Keywords != got {
		return nil, fmt.Errorf("%w: %w: trained with keyword table %s, configured %s",
			ErrUnavailable, ErrKeywordMismatch, shortFingerprint(a.Keywords), shortFingerprint(got))
	}

	return &Predictor{
		extractor:  features.NewExtractor(a.Description, a.Category, keywords),
		classifier: a.Classifier,
	}, nil
}

// Predict scores the whole batch in one pass.
func (p *Predictor) Predict(ctx context.Context, batch []*tender.Opportunity) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return []bool{}, nil
	}

	m, err := p.extractor.Transform(batch)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	return p.classifier.Predict(m)
}

func shortFingerprint(fp string) string {
	if fp == "" {
		return "<none>"
	}
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
