package ml

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONIsFlat(t *testing.T) {
	record := Record{Features: map[string]float64{FeatureCGPA: 8.25, FeatureIQ: 101}, Label: 1}
	payload, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cgpa":8.25,"iq":101,"placed":1}`, string(payload))

	var decoded Record
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, record, decoded)
}

func TestRecordJSONRequiresBinaryLabel(t *testing.T) {
	var record Record
	assert.Error(t, json.Unmarshal([]byte(`{"cgpa":8}`), &record))
	assert.Error(t, json.Unmarshal([]byte(`{"cgpa":8,"placed":0.5}`), &record))
	assert.Error(t, json.Unmarshal([]byte(`{"cgpa":"high","placed":1}`), &record))
	assert.Error(t, json.Unmarshal([]byte(`{"cgpa":8,"placed":null}`), &record))

	err := json.Unmarshal([]byte(`{"cgpa":null,"placed":1}`), &record)
	name, ok := IsInvalidValue(err)
	assert.True(t, ok)
	assert.Equal(t, FeatureCGPA, name)
}

func TestRecordVector(t *testing.T) {
	record := Record{Features: map[string]float64{"a": 1, "b": 2}}
	vector, err := record.Vector([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, vector)

	_, err = record.Vector([]string{"a", "c"})
	name, ok := IsMissingFeature(err)
	assert.True(t, ok)
	assert.Equal(t, "c", name)
	assert.EqualError(t, err, "missing feature: c")
}

func TestSaveAndLoadDataset(t *testing.T) {
	dataset, err := NewGenerator(1).Generate(25)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data", "students.json")
	require.NoError(t, SaveDataset(path, dataset))

	loaded, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, dataset, loaded)
	assert.Equal(t, dataset.PositiveRate(), loaded.PositiveRate())
}

func TestLoadDatasetRejectsIncompleteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"cgpa":7,"placed":1}]`), 0o644))

	_, err := LoadDataset(path)
	_, ok := IsMissingFeature(err)
	assert.True(t, ok, "expected missing feature, got %v", err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	_, err = LoadDataset(empty)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	assert.ErrorIs(t, SaveDataset(empty, nil), ErrEmptyDataset)
}

func TestWriteCSV(t *testing.T) {
	dataset := sampleDataset()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, dataset, FeatureNames()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(dataset)+1)
	assert.Equal(t, append(FeatureNames(), LabelField), rows[0])
	assert.Equal(t, "6.5", rows[1][0])
	assert.Equal(t, "0", rows[1][len(rows[1])-1])
	assert.Equal(t, "1", rows[2][len(rows[2])-1])
}

func TestDecodeFeatures(t *testing.T) {
	order := []string{"a", "b"}
	decode := func(body string) (map[string]float64, error) {
		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(body), &fields))
		return DecodeFeatures(fields, order)
	}

	values, err := decode(`{"a": 1.5, "b": -2, "extra": "ignored"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1.5, "b": -2}, values)

	_, err = decode(`{"b": 1}`)
	name, ok := IsMissingFeature(err)
	assert.True(t, ok)
	assert.Equal(t, "a", name)

	cases := map[string]string{
		"null":   `{"a": null, "b": 1}`,
		"string": `{"a": 1, "b": "7"}`,
		"bool":   `{"a": true, "b": 1}`,
		"object": `{"a": 1, "b": {"v": 1}}`,
	}
	for label, body := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := decode(body)
			_, ok := IsInvalidValue(err)
			assert.True(t, ok, "got %v", err)
			_, missing := IsMissingFeature(err)
			assert.False(t, missing)
		})
	}
}
