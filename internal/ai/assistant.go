package ai

import (
	"context"

	"github.com/spigell/tender-matcher/internal/tender"
)

// FitAssessment is an LLM opinion on whether a tender suits the company.
// It annotates a match and never changes the match verdict.
type FitAssessment struct {
	Fit    bool
	Score  float64
	Reason string
	Raw    string
}

type Reviewer interface {
	Evaluate(ctx context.Context, profile string, opportunity *tender.Opportunity) (*FitAssessment, error)
}
