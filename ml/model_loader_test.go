package ml

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_state.json")
	saved := trainedArtifact(t)
	require.NoError(t, saved.Save(path))

	for _, modelType := range []string{ModelTypeLogisticRegression, ""} {
		model, artifact, err := LoadModel(modelType, path)
		require.NoError(t, err)
		assert.Equal(t, saved.FeatureOrder, artifact.FeatureOrder)

		vector, err := artifact.Vectorize(strongProfile)
		require.NoError(t, err)
		_, got, err := model.Predict(vector)
		require.NoError(t, err)
		want, err := saved.Engine().PredictProb(vector)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12)
	}
}

func TestLoadModelErrors(t *testing.T) {
	_, _, err := LoadModel("decision_tree", "unused.json")
	assert.EqualError(t, err, `unsupported model type "decision_tree"`)
	assert.False(t, SupportedModelType("decision_tree"))

	_, _, err = LoadModel(ModelTypeLogisticRegression, filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, ErrArtifactNotLoaded))
}
