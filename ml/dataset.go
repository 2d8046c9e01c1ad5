package ml

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// SaveDataset writes the dataset as an indented JSON array of flat records.
func SaveDataset(path string, dataset Dataset) error {
	if len(dataset) == 0 {
		return ErrEmptyDataset
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// LoadDataset reads a dataset file and checks every record carries all
// features in FeatureNames.
func LoadDataset(path string) (Dataset, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dataset Dataset
	if err := json.Unmarshal(payload, &dataset); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	if len(dataset) == 0 {
		return nil, ErrEmptyDataset
	}
	order := FeatureNames()
	for i, record := range dataset {
		if _, err := record.Vector(order); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return dataset, nil
}

// WriteCSV exports the dataset with a header of the feature order followed
// by the label column.
func WriteCSV(w io.Writer, dataset Dataset, order []string) error {
	writer := csv.NewWriter(w)
	header := append(append([]string(nil), order...), LabelField)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, record := range dataset {
		vector, err := record.Vector(order)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		for j, value := range vector {
			row[j] = strconv.FormatFloat(value, 'f', -1, 64)
		}
		row[len(order)] = strconv.Itoa(record.Label)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
