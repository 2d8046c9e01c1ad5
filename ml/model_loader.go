package ml

import (
	"fmt"
)

const ModelTypeLogisticRegression = "logistic_regression"

// SupportedModelType reports whether LoadModel can build modelType. The
// empty string selects logistic regression.
func SupportedModelType(modelType string) bool {
	return modelType == ModelTypeLogisticRegression || modelType == ""
}

// LoadModel loads the artifact at path and returns its inference model.
func LoadModel(modelType, path string) (MLModel, *ModelArtifact, error) {
	switch modelType {
	case ModelTypeLogisticRegression, "":
		artifact, err := LoadArtifact(path)
		if err != nil {
			return nil, nil, err
		}
		return artifact.Engine(), artifact, nil
	default:
		return nil, nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
