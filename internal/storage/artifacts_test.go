package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/training"
)

func TestFileArtifactStore_SaveLoad_RoundTripsGradientBoost(t *testing.T) {
	dir := t.TempDir()
	s := NewFileArtifactStore(dir, zerolog.Nop())

	gb := training.NewGradientBoost(training.DefaultGradientBoostConfig())
	require.NoError(t, gb.Fit([][]float64{{1}, {2}, {3}, {4}, {5}}, []float64{1, 2, 3, 4, 5}))

	tenantID := uuid.New()
	artifact := arena.Artifact{
		Regressors: []training.Regressor{gb},
		Metadata: arena.ArtifactMetadata{
			Version:         "v1",
			Tier:            "cold_start",
			FeatureCols:     []string{"a", "b"},
			TrainingRows:    5,
			Metrics:         domain.ModelMetrics{MAE: 1.2, MAPE: 0.1, Coverage: 0.9},
			CategoryMapping: map[string]float64{"produce": 0, "dairy": 1},
		},
	}

	require.NoError(t, s.Save(tenantID, "demand_forecast", artifact))

	loaded, err := s.Load(tenantID, "demand_forecast", "v1")
	require.NoError(t, err)
	require.Len(t, loaded.Regressors, 1)
	assert.Equal(t, artifact.Metadata, loaded.Metadata)

	want, err := gb.Predict([][]float64{{6}})
	require.NoError(t, err)
	got, err := loaded.Regressors[0].Predict([][]float64{{6}})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileArtifactStore_SaveLoad_RoundTripsEWMAEnsemble(t *testing.T) {
	dir := t.TempDir()
	s := NewFileArtifactStore(dir, zerolog.Nop())

	e := training.NewEWMA(training.EWMAConfig{Alpha: 0.3})
	require.NoError(t, e.Fit(nil, []float64{4, 5, 6, 7}))

	gb := training.NewGradientBoost(training.DefaultGradientBoostConfig())
	require.NoError(t, gb.Fit([][]float64{{1}, {2}, {3}}, []float64{2, 4, 6}))

	tenantID := uuid.New()
	artifact := arena.Artifact{
		Regressors: []training.Regressor{gb, e},
		Metadata:   arena.ArtifactMetadata{Version: "v2", Weights: []float64{0.7, 0.3}},
	}
	require.NoError(t, s.Save(tenantID, "demand_forecast", artifact))

	loaded, err := s.Load(tenantID, "demand_forecast", "v2")
	require.NoError(t, err)
	require.Len(t, loaded.Regressors, 2)

	want, err := artifact.Predict([][]float64{{1}})
	require.NoError(t, err)
	got, err := loaded.Predict([][]float64{{1}})
	require.NoError(t, err)
	assert.InDelta(t, want[0].P50, got[0].P50, 1e-9)
}

func TestFileArtifactStore_Load_MissingVersionErrors(t *testing.T) {
	s := NewFileArtifactStore(t.TempDir(), zerolog.Nop())
	_, err := s.Load(uuid.New(), "demand_forecast", "v999")
	require.Error(t, err)
}
