package ml

import (
	"errors"
	"fmt"
)

// FeatureStats is the observed value range of one feature.
type FeatureStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type NormalizationStats map[string]FeatureStats

// FitStats scans the dataset once per feature in order and records the
// minimum and maximum raw value.
func FitStats(dataset Dataset, order []string) (NormalizationStats, error) {
	if len(dataset) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(order) == 0 {
		return nil, errors.New("feature order is empty")
	}
	stats := make(NormalizationStats, len(order))
	for _, name := range order {
		var current FeatureStats
		for i, record := range dataset {
			value, ok := record.Features[name]
			if !ok {
				return nil, fmt.Errorf("record %d: %w", i, &MissingFeatureError{Name: name})
			}
			if i == 0 {
				current = FeatureStats{Min: value, Max: value}
				continue
			}
			if value < current.Min {
				current.Min = value
			}
			if value > current.Max {
				current.Max = value
			}
		}
		stats[name] = current
	}
	return stats, nil
}

// Normalize maps raw values to a vector whose index i holds order[i]
// scaled by its stats. Values outside the fitted range are not clamped.
func Normalize(values map[string]float64, stats NormalizationStats, order []string) ([]float64, error) {
	raw := make([]float64, len(order))
	mins := make([]float64, len(order))
	maxs := make([]float64, len(order))
	for i, name := range order {
		value, ok := values[name]
		if !ok {
			return nil, &MissingFeatureError{Name: name}
		}
		s, ok := stats[name]
		if !ok {
			return nil, fmt.Errorf("missing stats for %s", name)
		}
		raw[i], mins[i], maxs[i] = value, s.Min, s.Max
	}
	return NormalizeVector(raw, mins, maxs)
}

type DataPreprocessor struct {
	featureOrder []string
	featureStats NormalizationStats
}

func NewDataPreprocessor(order []string) *DataPreprocessor {
	return &DataPreprocessor{featureOrder: append([]string(nil), order...)}
}

func (p *DataPreprocessor) ComputeStats(dataset Dataset) error {
	stats, err := FitStats(dataset, p.featureOrder)
	if err != nil {
		return err
	}
	p.featureStats = stats
	return nil
}

// Normalize converts the dataset into a feature matrix and label column
// using the computed stats.
func (p *DataPreprocessor) Normalize(dataset Dataset) ([][]float64, []int, error) {
	if len(dataset) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	if p.featureStats == nil {
		return nil, nil, errors.New("feature stats not computed")
	}

	vectors := make([][]float64, len(dataset))
	for i, record := range dataset {
		vector, err := Normalize(record.Features, p.featureStats, p.featureOrder)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, dataset.Labels(), nil
}

func (p *DataPreprocessor) FeatureOrder() []string {
	return append([]string(nil), p.featureOrder...)
}

func (p *DataPreprocessor) FeatureStats() NormalizationStats {
	if p.featureStats == nil {
		return nil
	}
	stats := make(NormalizationStats, len(p.featureStats))
	for key, value := range p.featureStats {
		stats[key] = value
	}
	return stats
}
