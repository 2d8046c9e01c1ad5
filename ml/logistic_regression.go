package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultLearningRate = 0.01
	DefaultEpochs       = 1000
	// ProductionEpochs is the epoch count used for the served model.
	ProductionEpochs = 2000
	// DecisionThreshold is fixed; PredictClass returns 1 at or above it.
	DecisionThreshold = 0.5

	defaultProgressInterval = 100
	lossEpsilon             = 1e-15
)

// LogisticRegression is a binary classifier trained with full-batch
// gradient descent.
type LogisticRegression struct {
	Weights []float64
	Bias    float64

	LearningRate float64
	Epochs       int

	// OnEpoch, when set, receives the log-loss every ProgressInterval
	// epochs and after the last one.
	OnEpoch          func(epoch int, loss float64)
	ProgressInterval int
}

func NewLogisticRegression(numFeatures int) *LogisticRegression {
	return &LogisticRegression{
		Weights:          make([]float64, numFeatures),
		LearningRate:     DefaultLearningRate,
		Epochs:           DefaultEpochs,
		ProgressInterval: defaultProgressInterval,
	}
}

// Train resets the parameters to zero and runs Epochs passes of batch
// gradient descent over X. Inputs are validated before any update.
func (m *LogisticRegression) Train(features [][]float64, labels []int) error {
	numFeatures, err := m.validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if m.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", m.LearningRate)
	}
	if m.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", m.Epochs)
	}

	m.Weights = make([]float64, numFeatures)
	m.Bias = 0

	numSamples := float64(len(features))
	step := m.LearningRate / numSamples
	dw := make([]float64, numFeatures)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		for j := range dw {
			dw[j] = 0
		}
		db := 0.0
		for i, x := range features {
			residual := Sigmoid(m.Bias+floats.Dot(m.Weights, x)) - float64(labels[i])
			floats.AddScaled(dw, residual, x)
			db += residual
		}
		floats.AddScaled(m.Weights, -step, dw)
		m.Bias -= step * db

		if m.OnEpoch != nil && m.reportEpoch(epoch) {
			loss, _ := m.LogLoss(features, labels)
			m.OnEpoch(epoch+1, loss)
		}
	}
	return nil
}

func (m *LogisticRegression) reportEpoch(epoch int) bool {
	interval := m.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	return (epoch+1)%interval == 0 || epoch == m.Epochs-1
}

func (m *LogisticRegression) validateTrainingSet(features [][]float64, labels []int) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(features) != len(labels) {
		return 0, fmt.Errorf("%w: %d rows but %d labels", ErrDimensionMismatch, len(features), len(labels))
	}
	numFeatures := len(m.Weights)
	if numFeatures == 0 {
		numFeatures = len(features[0])
	}
	if numFeatures == 0 {
		return 0, fmt.Errorf("%w: rows have no features", ErrDimensionMismatch)
	}
	for i, row := range features {
		if len(row) != numFeatures {
			return 0, fmt.Errorf("%w: row %d has %d values, expected %d", ErrDimensionMismatch, i, len(row), numFeatures)
		}
	}
	for i, label := range labels {
		if label != 0 && label != 1 {
			return 0, fmt.Errorf("label %d at row %d is not 0 or 1", label, i)
		}
	}
	return numFeatures, nil
}

// PredictProb returns sigmoid(bias + w·x).
func (m *LogisticRegression) PredictProb(x []float64) (float64, error) {
	if len(x) != len(m.Weights) {
		return 0, fmt.Errorf("%w: got %d values, model has %d weights", ErrDimensionMismatch, len(x), len(m.Weights))
	}
	return Sigmoid(m.Bias + floats.Dot(m.Weights, x)), nil
}

func (m *LogisticRegression) PredictClass(x []float64) (int, error) {
	prob, err := m.PredictProb(x)
	if err != nil {
		return 0, err
	}
	return classify(prob), nil
}

// Predict returns the class and its probability of being placed.
func (m *LogisticRegression) Predict(x []float64) (int, float64, error) {
	prob, err := m.PredictProb(x)
	if err != nil {
		return 0, 0, err
	}
	return classify(prob), prob, nil
}

// LogLoss is the mean binary cross-entropy over the set.
func (m *LogisticRegression) LogLoss(features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(features) != len(labels) {
		return 0, ErrDimensionMismatch
	}
	total := 0.0
	for i, x := range features {
		prob, err := m.PredictProb(x)
		if err != nil {
			return 0, err
		}
		total += crossEntropy(prob, labels[i])
	}
	return total / float64(len(features)), nil
}

// crossEntropy is the binary log-loss of one prediction, with prob clipped
// away from 0 and 1.
func crossEntropy(prob float64, label int) float64 {
	prob = math.Min(math.Max(prob, lossEpsilon), 1-lossEpsilon)
	if label == 1 {
		return -math.Log(prob)
	}
	return -math.Log(1 - prob)
}

func (m *LogisticRegression) Params() ModelParams {
	return ModelParams{
		Weights: append([]float64(nil), m.Weights...),
		Bias:    m.Bias,
	}
}

func classify(prob float64) int {
	if prob >= DecisionThreshold {
		return 1
	}
	return 0
}
