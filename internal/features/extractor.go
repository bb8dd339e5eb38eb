package features

import (
	"fmt"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

// Extractor builds classifier rows laid out as
// [description terms | category+agency terms | keyword score].
// The layout is part of the trained model; changing it invalidates artifacts.
type Extractor struct {
	description *Vocabulary
	category    *Vocabulary
	keywords    *match.KeywordScorer
}

func NewExtractor(description, category *Vocabulary, keywords *match.KeywordScorer) *Extractor {
	return &Extractor{
		description: description,
		category:    category,
		keywords:    keywords,
	}
}

// Width is the number of columns of every row.
func (e *Extractor) Width() int {
	return e.description.Len() + e.category.Len() + 1
}

// Transform converts a batch in one pass. Both vocabularies must be fitted.
func (e *Extractor) Transform(batch []*tender.Opportunity) (*Matrix, error) {
	if e.description.Len() == 0 {
		return nil, fmt.Errorf("description vocabulary: %w", ErrNotFitted)
	}
	if e.category.Len() == 0 {
		return nil, fmt.Errorf("category vocabulary: %w", ErrNotFitted)
	}
	if e.keywords == nil {
		return nil, fmt.Errorf("keyword scorer is required")
	}

	descWidth := e.description.Len()
	scoreCol := descWidth + e.category.Len()

	m := &Matrix{Cols: e.Width(), Rows: make([]Vector, 0, len(batch))}
	for _, o := range batch {
		desc, err := e.description.Transform(o.Description)
		if err != nil {
			return nil, err
		}
		cat, err := e.category.Transform(o.CategoryText())
		if err != nil {
			return nil, err
		}

		var row Vector
		appendBlock(&row, desc, 0)
		appendBlock(&row, cat, descWidth)

		if score := e.keywords.Score(o.SearchText()).Score; score != 0 {
			row.Indices = append(row.Indices, scoreCol)
			row.Values = append(row.Values, float64(score))
		}

		m.Rows = append(m.Rows, row)
	}

	return m, nil
}
