package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when training rows, labels or an
	// input vector do not agree with the model's feature count.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrArtifactNotLoaded is returned when inference runs before a model
	// artifact is available.
	ErrArtifactNotLoaded = errors.New("model artifact not loaded")
	ErrEmptyDataset      = errors.New("dataset is empty")
	ErrInvalidArtifact   = errors.New("invalid model artifact")
)

// MissingFeatureError names the first required feature absent from an input.
type MissingFeatureError struct {
	Name string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing feature: %s", e.Name)
}

// InvalidValueError names a feature whose value is null or not a number.
type InvalidValueError struct {
	Name string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for feature: %s", e.Name)
}

// IsMissingFeature reports whether err carries a MissingFeatureError and
// returns the missing name.
func IsMissingFeature(err error) (string, bool) {
	var missing *MissingFeatureError
	if errors.As(err, &missing) {
		return missing.Name, true
	}
	return "", false
}

func IsInvalidValue(err error) (string, bool) {
	var invalid *InvalidValueError
	if errors.As(err, &invalid) {
		return invalid.Name, true
	}
	return "", false
}
