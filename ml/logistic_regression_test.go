package ml

import (
	"errors"
	"math"
	"testing"
)

func TestSigmoidIsBounded(t *testing.T) {
	if got := Sigmoid(0); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	for _, z := range []float64{-1e6, -800, 800, 1e6} {
		got := Sigmoid(z)
		if math.IsNaN(got) || got < 0 || got > 1 {
			t.Fatalf("sigmoid(%v) = %v", z, got)
		}
	}
	if Sigmoid(3) <= Sigmoid(2) {
		t.Fatal("sigmoid must be increasing")
	}
}

func TestPredictProbOfZeroVectorIsSigmoidOfBias(t *testing.T) {
	model := NewLogisticRegression(3)
	model.Weights = []float64{4, -2, 7}
	model.Bias = -0.75

	prob, err := model.PredictProb([]float64{0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prob != Sigmoid(-0.75) {
		t.Fatalf("expected %v, got %v", Sigmoid(-0.75), prob)
	}
}

func TestPredictClassThreshold(t *testing.T) {
	model := NewLogisticRegression(1)

	class, err := model.PredictClass([]float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// probability exactly 0.5 is placed
	if class != 1 {
		t.Fatalf("expected class 1 at threshold, got %d", class)
	}

	model.Bias = -0.01
	if class, _ = model.PredictClass([]float64{1}); class != 0 {
		t.Fatalf("expected class 0 below threshold, got %d", class)
	}
}

func TestPredictRejectsWrongLength(t *testing.T) {
	model := NewLogisticRegression(2)
	if _, err := model.PredictProb([]float64{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, _, err := model.Predict([]float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestTrainValidatesBeforeUpdating(t *testing.T) {
	model := NewLogisticRegression(2)
	model.Weights = []float64{1, 2}
	model.Bias = 3

	cases := []struct {
		name     string
		features [][]float64
		labels   []int
		want     error
	}{
		{name: "empty", want: ErrEmptyDataset},
		{name: "label count", features: [][]float64{{0, 1}, {1, 0}}, labels: []int{1}, want: ErrDimensionMismatch},
		{name: "ragged row", features: [][]float64{{0, 1}, {1}}, labels: []int{1, 0}, want: ErrDimensionMismatch},
		{name: "wrong width", features: [][]float64{{0, 1, 2}}, labels: []int{1}, want: ErrDimensionMismatch},
		{name: "bad label", features: [][]float64{{0, 1}}, labels: []int{2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := model.Train(tc.features, tc.labels)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if model.Weights[0] != 1 || model.Weights[1] != 2 || model.Bias != 3 {
				t.Fatalf("parameters changed on failed training: %v %v", model.Weights, model.Bias)
			}
		})
	}
}

func TestTrainRejectsBadHyperparameters(t *testing.T) {
	features := [][]float64{{0}, {1}}
	labels := []int{0, 1}

	model := NewLogisticRegression(1)
	model.LearningRate = 0
	if err := model.Train(features, labels); err == nil {
		t.Fatal("expected error for zero learning rate")
	}

	model = NewLogisticRegression(1)
	model.Epochs = 0
	if err := model.Train(features, labels); err == nil {
		t.Fatal("expected error for zero epochs")
	}
}

func TestTrainSeparatesLinearData(t *testing.T) {
	features := [][]float64{{0.0, 0.1}, {0.1, 0.0}, {0.2, 0.1}, {0.9, 1.0}, {1.0, 0.8}, {0.8, 0.9}}
	labels := []int{0, 0, 0, 1, 1, 1}

	model := NewLogisticRegression(2)
	model.LearningRate = 0.5
	model.Epochs = 3000

	var reported []int
	model.ProgressInterval = 1000
	model.OnEpoch = func(epoch int, loss float64) {
		reported = append(reported, epoch)
	}

	before, err := model.LogLoss(features, labels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := model.LogLoss(features, labels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after >= before {
		t.Fatalf("loss did not decrease: %v -> %v", before, after)
	}
	for i, x := range features {
		class, err := model.PredictClass(x)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if class != labels[i] {
			t.Fatalf("row %d: expected %d, got %d", i, labels[i], class)
		}
	}
	if len(reported) != 3 || reported[2] != 3000 {
		t.Fatalf("unexpected progress epochs: %v", reported)
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	features := [][]float64{{0.2, 0.4}, {0.9, 0.1}, {0.5, 0.5}, {0.1, 0.9}}
	labels := []int{0, 1, 1, 0}

	first := NewLogisticRegression(2)
	second := NewLogisticRegression(2)
	second.Weights = []float64{5, 5}
	second.Bias = 5
	if err := first.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := second.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Bias != second.Bias || first.Weights[0] != second.Weights[0] || first.Weights[1] != second.Weights[1] {
		t.Fatalf("training is not reproducible: %+v vs %+v", first.Params(), second.Params())
	}
}
