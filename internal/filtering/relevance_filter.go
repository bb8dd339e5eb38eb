package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/match"
)

type relevanceFilter struct {
	engine     *match.Engine
	predictor  match.Predictor
	escalation int
	reason     string
	logger     *zap.Logger
}

type RelevanceDeps struct {
	Engine *match.Engine
	// Predictor is nil when no trained model is available.
	Predictor match.Predictor
	Logger    *zap.Logger
}

type RelevanceConfig struct {
	EscalationThreshold int
	// ModelReason explains why Predictor is nil, for the status report.
	ModelReason string
}

// NewRelevance creates the step that decides every opportunity and keeps the matches.
func NewRelevance(cfg *RelevanceConfig, deps *RelevanceDeps) Filter {
	f := &relevanceFilter{}
	if cfg != nil {
		f.escalation = cfg.EscalationThreshold
		f.reason = cfg.ModelReason
	}
	if deps != nil {
		f.engine = deps.Engine
		f.predictor = deps.Predictor
		f.logger = deps.Logger
	}
	return f
}

func (f *relevanceFilter) Name() string { return "relevance" }

func (f *relevanceFilter) Disable(string) {}

func (f *relevanceFilter) IsEnabled() bool { return true }

func (f *relevanceFilter) Validate() error {
	if f.engine == nil {
		return fmt.Errorf("decision engine is required")
	}
	if f.logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

func (f *relevanceFilter) Apply(ctx context.Context, r *match.Results) (*match.Results, Step, error) {
	initial := r.Len()
	batch := r.Opportunities()

	predictions := f.predict(ctx, r)

	decisions, err := f.engine.DecideBatch(batch, predictions)
	if err != nil {
		return r, Step{}, err
	}

	for i, item := range r.Items {
		item.Decision = decisions[i]
		f.logger.Debug("opportunity decided",
			zap.String("id", item.Key()),
			zap.Bool("taxonomy", item.Decision.Taxonomy),
			zap.Bool("keyword", item.Decision.Keyword),
			zap.Int("score", item.Decision.Score),
			zap.Bool("value", item.Decision.Value),
			zap.Bool("model", item.Decision.Model),
			zap.Bool("final", item.Decision.Final),
			zap.String("reason", string(item.Decision.Reason)),
		)
	}

	dropped := r.Retain(func(item *match.Result) bool {
		return item.Decision.Final
	})

	return r, Step{Initial: initial, Dropped: len(dropped), Left: r.Len()}, nil
}

// predict returns nil whenever the model cannot be used; the engine then
// decides on the rules alone.
func (f *relevanceFilter) predict(ctx context.Context, r *match.Results) []bool {
	if f.predictor == nil || r.Len() == 0 {
		return nil
	}

	predictions, err := f.predictor.Predict(ctx, r.Opportunities())
	if err != nil {
		f.logger.Warn("model prediction failed; using rule-based scoring only", zap.Error(err))
		return nil
	}
	if len(predictions) != r.Len() {
		f.logger.Warn("model returned wrong number of predictions; using rule-based scoring only",
			zap.Int("predictions", len(predictions)),
			zap.Int("opportunities", r.Len()),
		)
		return nil
	}

	return predictions
}

func (f *relevanceFilter) Status() Status {
	details := map[string]string{
		"model": "unavailable",
	}
	if f.predictor != nil {
		details["model"] = "available"
		details["escalation_threshold"] = strconv.Itoa(f.escalation)
	} else if f.reason != "" {
		details["model_reason"] = f.reason
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
