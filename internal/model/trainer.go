package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/features"
	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

const (
	defaultEpochs       = 500
	defaultLearningRate = 0.5
	defaultL2           = 1e-4
)

// Example is one labeled historical opportunity.
type Example struct {
	tender.Opportunity
	Relevant bool `json:"relevant"`
}

// LoadExamples reads a JSON array of labeled opportunities.
func LoadExamples(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}

	var examples []Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("parse training data %q: %w", path, err)
	}

	return examples, nil
}

// TrainerConfig holds the knobs of a training run.
type TrainerConfig struct {
	Description  features.VectorizerSpec
	Category     features.VectorizerSpec
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainerConfig returns the settings used when nothing is configured.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Description:  features.DescriptionSpec,
		Category:     features.CategorySpec,
		Epochs:       defaultEpochs,
		LearningRate: defaultLearningRate,
		L2:           defaultL2,
	}
}

// Trainer fits the full artifact triple.
type Trainer struct {
	cfg      TrainerConfig
	keywords *match.KeywordScorer
	logger   *zap.Logger
}

func NewTrainer(cfg TrainerConfig, keywords *match.KeywordScorer, logger *zap.Logger) *Trainer {
	def := DefaultTrainerConfig()
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.L2 < 0 {
		cfg.L2 = def.L2
	}
	if cfg.Description == (features.VectorizerSpec{}) {
		cfg.Description = def.Description
	}
	if cfg.Category == (features.VectorizerSpec{}) {
		cfg.Category = def.Category
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trainer{cfg: cfg, keywords: keywords, logger: logger}
}

// Fit learns both vocabularies from examples and trains the classifier on
// the combined features.
func (t *Trainer) Fit(examples []Example) (*Artifacts, error) {
	if len(examples) == 0 {
		return nil, errors.New("no training examples")
	}
	if t.keywords == nil {
		return nil, errors.New("keyword scorer is required")
	}

	batch := make([]*tender.Opportunity, 0, len(examples))
	labels := make([]bool, 0, len(examples))
	descriptions := make([]string, 0, len(examples))
	categories := make([]string, 0, len(examples))
	positives := 0

	for i := range examples {
		o := &examples[i].Opportunity
		batch = append(batch, o)
		labels = append(labels, examples[i].Relevant)
		descriptions = append(descriptions, o.Description)
		categories = append(categories, o.CategoryText())
		if examples[i].Relevant {
			positives++
		}
	}

	if positives == 0 || positives == len(examples) {
		return nil, fmt.Errorf("training data needs relevant and irrelevant examples, got %d of %d relevant", positives, len(examples))
	}

	desc, err := t.cfg.Description.Fit(descriptions)
	if err != nil {
		return nil, fmt.Errorf("description vectorizer: %w", err)
	}
	cat, err := t.cfg.Category.Fit(categories)
	if err != nil {
		return nil, fmt.Errorf("category vectorizer: %w", err)
	}

	m, err := features.NewExtractor(desc, cat, t.keywords).Transform(batch)
	if err != nil {
		return nil, fmt.Errorf("extract training features: %w", err)
	}

	clf := t.fitLogistic(m, labels)

	t.logger.Info("model trained",
		zap.Int("examples", len(examples)),
		zap.Int("relevant", positives),
		zap.Int("description_terms", desc.Len()),
		zap.Int("category_terms", cat.Len()),
		zap.Int("width", m.Cols),
	)

	return &Artifacts{
		TrainingID:  uuid.NewString(),
		Keywords:    t.keywords.Fingerprint(),
		Classifier:  clf,
		Description: desc,
		Category:    cat,
	}, nil
}

// fitLogistic runs full-batch gradient descent with L2 regularization.
// There is no randomness; identical input yields an identical model.
func (t *Trainer) fitLogistic(m *features.Matrix, labels []bool) *Classifier {
	scale := make([]float64, m.Cols)
	for _, row := range m.Rows {
		for i, idx := range row.Indices {
			scale[idx] = math.Max(scale[idx], math.Abs(row.Values[i]))
		}
	}
	for i := range scale {
		if scale[i] == 0 {
			scale[i] = 1
		}
	}

	clf := &Classifier{weights: make([]float64, m.Cols), scale: scale}
	n := float64(len(m.Rows))
	grad := make([]float64, m.Cols)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		for i, w := range clf.weights {
			grad[i] = t.cfg.L2 * w
		}
		gradBias := 0.0

		for r, row := range m.Rows {
			y := 0.0
			if labels[r] {
				y = 1
			}
			diff := sigmoid(clf.linear(row)) - y
			for i, idx := range row.Indices {
				grad[idx] += diff * row.Values[i] / scale[idx] / n
			}
			gradBias += diff / n
		}

		for i := range clf.weights {
			clf.weights[i] -= t.cfg.LearningRate * grad[i]
		}
		clf.bias -= t.cfg.LearningRate * gradBias
	}

	return clf
}
