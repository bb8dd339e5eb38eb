package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/ai"
	"github.com/spigell/tender-matcher/internal/match"
)

type aiReviewFilter struct {
	enabled bool
	reason  string
	config  *AIReviewConfig
	deps    *AIReviewDeps
}

type AIReviewDeps struct {
	Logger   *zap.Logger
	Reviewer ai.Reviewer
}

type AIReviewConfig struct {
	Enabled         bool
	Provider        string
	Profile         string
	MinimumFitScore float64
	Model           string
}

// NewAIReview creates the step that attaches an LLM opinion to every match.
// It never drops a result.
func NewAIReview(cfg *AIReviewConfig, deps *AIReviewDeps) Filter {
	if cfg == nil {
		cfg = &AIReviewConfig{}
	}
	return &aiReviewFilter{
		enabled: cfg.Enabled,
		config:  cfg,
		deps:    deps,
	}
}

func (f *aiReviewFilter) Name() string { return "ai_review" }

func (f *aiReviewFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *aiReviewFilter) IsEnabled() bool { return f.enabled }

func (f *aiReviewFilter) Validate() error {
	if f.deps == nil || f.deps.Reviewer == nil {
		return fmt.Errorf("reviewer is not initialized: filter is not usable")
	}
	if f.deps.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if strings.TrimSpace(f.config.Profile) == "" {
		return fmt.Errorf("company profile is required when ai review is enabled")
	}
	return nil
}

func (f *aiReviewFilter) Apply(ctx context.Context, r *match.Results) (*match.Results, Step, error) {
	for _, item := range r.Items {
		if err := ctx.Err(); err != nil {
			return r, Step{}, err
		}

		assessment, err := f.deps.Reviewer.Evaluate(ctx, f.config.Profile, item.Opportunity)
		if err != nil {
			f.deps.Logger.Warn("AI review failed",
				zap.String("id", item.Key()),
				zap.Error(err),
			)
			item.Review = &match.Review{Error: err.Error()}
			continue
		}

		item.Review = &match.Review{
			Fit:    assessment.Fit,
			Score:  assessment.Score,
			Reason: assessment.Reason,
		}

		f.deps.Logger.Info("opportunity reviewed by AI",
			zap.String("id", item.Key()),
			zap.Bool("fit", assessment.Fit),
			zap.Float64("ai_score", assessment.Score),
		)
	}

	return r, Step{Initial: r.Len(), Dropped: 0, Left: r.Len()}, nil
}

func (f *aiReviewFilter) Status() Status {
	details := map[string]string{}
	if f.config != nil {
		if f.config.Provider != "" {
			details["provider"] = f.config.Provider
		}
		if f.config.Model != "" {
			details["model"] = f.config.Model
		}
		details["minimum_fit_score"] = fmt.Sprintf("%.2f", f.config.MinimumFitScore)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
