package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const (
	FeatureCGPA           = "cgpa"
	FeatureIQ             = "iq"
	FeatureProjects       = "projects"
	FeatureInternships    = "internships"
	FeatureTechScore      = "techScore"
	FeatureCommScore      = "commScore"
	FeatureBacklogs       = "backlogs"
	FeatureHackathons     = "hackathons"
	FeatureCertifications = "certifications"

	// LabelField is the key holding the 0/1 outcome in dataset files.
	LabelField = "placed"
)

// Record is one student profile: raw feature values keyed by name plus the
// binary placement label. Records are not mutated after creation.
type Record struct {
	Features map[string]float64
	Label    int
}

type Dataset []Record

func FeatureNames() []string {
	return []string{
		FeatureCGPA,
		FeatureIQ,
		FeatureProjects,
		FeatureInternships,
		FeatureTechScore,
		FeatureCommScore,
		FeatureBacklogs,
		FeatureHackathons,
		FeatureCertifications,
	}
}

// MarshalJSON writes the record as a flat object: the feature names plus
// the label field.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]float64, len(r.Features)+1)
	for name, value := range r.Features {
		flat[name] = value
	}
	flat[LabelField] = float64(r.Label)
	return json.Marshal(flat)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	rawLabel, ok := fields[LabelField]
	if !ok {
		return fmt.Errorf("record missing %q", LabelField)
	}
	label, ok := decodeNumber(rawLabel)
	if !ok || (label != 0 && label != 1) {
		return fmt.Errorf("invalid label %s", rawLabel)
	}
	delete(fields, LabelField)

	features := make(map[string]float64, len(fields))
	for name, raw := range fields {
		value, ok := decodeNumber(raw)
		if !ok {
			return &InvalidValueError{Name: name}
		}
		features[name] = value
	}
	r.Features = features
	r.Label = int(label)
	return nil
}

// DecodeFeatures reads the features named in order from a flat JSON
// object. The first absent name is a *MissingFeatureError and a null or
// non-number value is an *InvalidValueError. Other keys are ignored.
func DecodeFeatures(fields map[string]json.RawMessage, order []string) (map[string]float64, error) {
	values := make(map[string]float64, len(order))
	for _, name := range order {
		raw, ok := fields[name]
		if !ok {
			return nil, &MissingFeatureError{Name: name}
		}
		value, ok := decodeNumber(raw)
		if !ok {
			return nil, &InvalidValueError{Name: name}
		}
		values[name] = value
	}
	return values, nil
}

// decodeNumber rejects null, which encoding/json would otherwise leave as
// the zero value.
func decodeNumber(raw json.RawMessage) (float64, bool) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	return value, true
}

// Vector returns the raw values in the given order.
func (r Record) Vector(order []string) ([]float64, error) {
	vector := make([]float64, len(order))
	for i, name := range order {
		value, ok := r.Features[name]
		if !ok {
			return nil, &MissingFeatureError{Name: name}
		}
		vector[i] = value
	}
	return vector, nil
}

// Labels returns the label column of the dataset.
func (d Dataset) Labels() []int {
	labels := make([]int, len(d))
	for i, record := range d {
		labels[i] = record.Label
	}
	return labels
}

// PositiveRate is the fraction of records labelled 1.
func (d Dataset) PositiveRate() float64 {
	if len(d) == 0 {
		return 0
	}
	positives := 0
	for _, record := range d {
		positives += record.Label
	}
	return float64(positives) / float64(len(d))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
