package arena

import (
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/training"
)

// ArtifactMetadata is the non-regressor half of a ModelArtifact.
type ArtifactMetadata struct {
	Version      string
	Tier         string
	FeatureCols  []string
	Weights      []float64 // ensemble-member weights, empty for a single regressor
	TrainingRows int
	Metrics      domain.ModelMetrics
	// CategoryMapping is the category->code table internal/features's
	// StableCategoryEncoder used at training time, persisted so
	// prediction-time encoding reproduces it exactly rather than
	// minting fresh codes from a second, unrelated encoder instance.
	CategoryMapping map[string]float64
}

// Artifact pairs a fitted regressor (or ensemble of regressors) with
// the metadata needed to reproduce predictions exactly — the feature
// column set must match at train and predict time.
type Artifact struct {
	Regressors []training.Regressor
	Metadata   ArtifactMetadata
}

// Predict runs every regressor in the ensemble and combines their
// outputs per Metadata.Weights (a single-element ensemble is the
// common case and Combine degenerates to that regressor's own
// output).
func (a Artifact) Predict(X [][]float64) ([]training.Prediction, error) {
	if len(a.Regressors) == 1 {
		return a.Regressors[0].Predict(X)
	}

	predictions := make([][]training.Prediction, len(a.Regressors))
	for i, r := range a.Regressors {
		p, err := r.Predict(X)
		if err != nil {
			return nil, err
		}
		predictions[i] = p
	}

	weights := a.Metadata.Weights
	if len(weights) != len(a.Regressors) {
		weights = make([]float64, len(a.Regressors))
		for i := range weights {
			weights[i] = 1
		}
	}
	return training.Combine(predictions, weights)
}
