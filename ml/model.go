package ml

import "context"

type MLModel interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
}

// ModelProvider is implemented by anything that can score a raw feature map.
type ModelProvider interface {
	Predict(ctx context.Context, features map[string]float64) (*PredictionResult, error)
}

// PredictionResult is the shaped outcome returned to callers. Probability
// is a percentage rounded to two decimals; ProbabilityText is the same
// value formatted with exactly two decimals.
type PredictionResult struct {
	Placed          bool    `json:"placed"`
	Probability     float64 `json:"probability"`
	ProbabilityText string  `json:"-"`
	Message         string  `json:"message"`
}

var _ MLModel = (*LogisticRegression)(nil)
