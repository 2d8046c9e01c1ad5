package ml

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed artifact.schema.json
var artifactSchemaJSON []byte

var (
	artifactSchema = mustCompileSchema(artifactSchemaJSON, "artifact.schema.json")
	schemaPrinter  = message.NewPrinter(language.English)
)

const artifactFileMode = 0o600

type ModelParams struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

type ArtifactMetadata struct {
	RunID            string    `json:"runId,omitempty"`
	TrainedAt        time.Time `json:"trainedAt"`
	LearningRate     float64   `json:"learningRate"`
	Epochs           int       `json:"epochs"`
	Samples          int       `json:"samples"`
	TrainingAccuracy float64   `json:"trainingAccuracy"`
}

// ModelArtifact bundles everything inference needs: parameters, the
// normalization stats they were trained against and the feature order
// that maps vector indices to names.
type ModelArtifact struct {
	Model        ModelParams        `json:"model"`
	Stats        NormalizationStats `json:"stats"`
	FeatureOrder []string           `json:"featureOrder"`
	Metadata     *ArtifactMetadata  `json:"metadata,omitempty"`
}

func NewModelArtifact(model *LogisticRegression, stats NormalizationStats, order []string) (*ModelArtifact, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is nil", ErrInvalidArtifact)
	}
	artifact := &ModelArtifact{
		Model:        model.Params(),
		Stats:        make(NormalizationStats, len(stats)),
		FeatureOrder: append([]string(nil), order...),
	}
	for name, s := range stats {
		artifact.Stats[name] = s
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}

// Validate checks the invariants the schema cannot express.
func (a *ModelArtifact) Validate() error {
	if len(a.FeatureOrder) == 0 {
		return fmt.Errorf("%w: feature order is empty", ErrInvalidArtifact)
	}
	if len(a.Model.Weights) != len(a.FeatureOrder) {
		return fmt.Errorf("%w: %d weights for %d features", ErrInvalidArtifact, len(a.Model.Weights), len(a.FeatureOrder))
	}
	if !finite(a.Model.Bias) {
		return fmt.Errorf("%w: bias is not finite", ErrInvalidArtifact)
	}
	seen := make(map[string]bool, len(a.FeatureOrder))
	for i, name := range a.FeatureOrder {
		if seen[name] {
			return fmt.Errorf("%w: duplicate feature %s", ErrInvalidArtifact, name)
		}
		seen[name] = true
		s, ok := a.Stats[name]
		if !ok {
			return fmt.Errorf("%w: missing stats for %s", ErrInvalidArtifact, name)
		}
		if !finite(s.Min) || !finite(s.Max) || s.Min > s.Max {
			return fmt.Errorf("%w: bad range for %s", ErrInvalidArtifact, name)
		}
		if !finite(a.Model.Weights[i]) {
			return fmt.Errorf("%w: weight for %s is not finite", ErrInvalidArtifact, name)
		}
	}
	return nil
}

// Engine returns a fresh inference model built from the stored parameters.
func (a *ModelArtifact) Engine() *LogisticRegression {
	model := NewLogisticRegression(len(a.Model.Weights))
	copy(model.Weights, a.Model.Weights)
	model.Bias = a.Model.Bias
	if a.Metadata != nil {
		model.LearningRate = a.Metadata.LearningRate
		model.Epochs = a.Metadata.Epochs
	}
	return model
}

// Vectorize normalizes a raw feature map using the artifact's stats and
// order. Keys of input that are not in the order are ignored.
func (a *ModelArtifact) Vectorize(input map[string]float64) ([]float64, error) {
	return Normalize(input, a.Stats, a.FeatureOrder)
}

func (a *ModelArtifact) Marshal() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(a, "", "  ")
}

// UnmarshalArtifact decodes and validates an artifact document.
func UnmarshalArtifact(data []byte) (*ModelArtifact, error) {
	if errs := validateArtifactDocument(data); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArtifact, strings.Join(errs, "; "))
	}
	var artifact ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Save writes the artifact next to path and renames it into place so
// readers never observe a partial file.
func (a *ModelArtifact) Save(path string) error {
	payload, err := a.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(artifactFileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadArtifact(path string) (*ModelArtifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactNotLoaded, err)
	}
	return UnmarshalArtifact(payload)
}

func validateArtifactDocument(data []byte) []string {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("json parse error: %v", err)}
	}
	err = artifactSchema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, errs)
	}
}

func mustCompileSchema(raw []byte, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return schema
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
