package arena

import (
	"testing"

	"github.com/aristath/sentinel/internal/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifact_Predict_SingleRegressorPassesThrough(t *testing.T) {
	e := training.NewEWMA(training.EWMAConfig{Alpha: 0.5})
	require.NoError(t, e.Fit(make([][]float64, 3), []float64{1, 2, 3}))

	a := Artifact{Regressors: []training.Regressor{e}, Metadata: ArtifactMetadata{Version: "v1"}}
	preds, err := a.Predict(make([][]float64, 2))
	require.NoError(t, err)
	assert.Len(t, preds, 2)
}

func TestArtifact_Predict_EnsembleCombinesWeighted(t *testing.T) {
	a1 := training.NewEWMA(training.EWMAConfig{Alpha: 0.9})
	require.NoError(t, a1.Fit(make([][]float64, 1), []float64{10}))
	a2 := training.NewEWMA(training.EWMAConfig{Alpha: 0.9})
	require.NoError(t, a2.Fit(make([][]float64, 1), []float64{20}))

	a := Artifact{
		Regressors: []training.Regressor{a1, a2},
		Metadata:   ArtifactMetadata{Weights: []float64{1, 1}},
	}
	preds, err := a.Predict(make([][]float64, 1))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 15, preds[0].P50, 0.01)
}
