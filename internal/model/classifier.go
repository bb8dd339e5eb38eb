package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"github.com/spigell/tender-matcher/internal/features"
)

// ErrDimensionMismatch means the feature layout differs from the one the
// classifier was trained on.
var ErrDimensionMismatch = errors.New("feature width does not match the trained classifier")

// Classifier is a fitted logistic regression over max-abs scaled features.
// It has no fitting methods; Trainer is the only producer.
type Classifier struct {
	weights []float64
	scale   []float64
	bias    float64
}

// Width is the number of feature columns the classifier expects.
func (c *Classifier) Width() int {
	if c == nil {
		return 0
	}
	return len(c.weights)
}

// Probabilities returns P(relevant) per row.
func (c *Classifier) Probabilities(m *features.Matrix) ([]float64, error) {
	if c.Width() == 0 {
		return nil, errors.New("classifier is not trained")
	}
	if m.Cols != c.Width() {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrDimensionMismatch, m.Cols, c.Width())
	}

	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = sigmoid(c.linear(row))
	}
	return out, nil
}

// Predict thresholds probabilities at 0.5.
func (c *Classifier) Predict(m *features.Matrix) ([]bool, error) {
	probs, err := c.Probabilities(m)
	if err != nil {
		return nil, err
	}

	out := make([]bool, len(probs))
	for i, p := range probs {
		out[i] = p >= 0.5
	}
	return out, nil
}

func (c *Classifier) linear(row features.Vector) float64 {
	z := c.bias
	for i, idx := range row.Indices {
		z += c.weights[idx] * row.Values[i] / c.scale[idx]
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

type classifierSnapshot struct {
	Weights []float64
	Scale   []float64
	Bias    float64
}

func (c *Classifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(classifierSnapshot{Weights: c.weights, Scale: c.scale, Bias: c.bias})
	return buf.Bytes(), err
}

func (c *Classifier) GobDecode(data []byte) error {
	var snap classifierSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if len(snap.Weights) == 0 || len(snap.Weights) != len(snap.Scale) {
		return fmt.Errorf("classifier blob is inconsistent: %d weights, %d scale entries", len(snap.Weights), len(snap.Scale))
	}

	c.weights, c.scale, c.bias = snap.Weights, snap.Scale, snap.Bias
	return nil
}
