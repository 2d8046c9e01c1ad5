package ml

import (
	"math"
)

// maxLogit bounds the sigmoid argument so exp never overflows.
const maxLogit = 500.0

func Sigmoid(z float64) float64 {
	if z > maxLogit {
		z = maxLogit
	} else if z < -maxLogit {
		z = -maxLogit
	}
	return 1 / (1 + math.Exp(-z))
}

// NormalizeFeature min-max scales value. A zero-width range maps to 0.
func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, ErrDimensionMismatch
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}
