// Package pipeline wires together the per-component pieces of feature
// engineering, training, and model promotion: it is the training
// orchestration the scheduler's retrain task and the replay simulator's
// retrain trigger
// both call into, tying internal/features, internal/training,
// internal/arena, and internal/storage into the single end-to-end
// operation "train a candidate on a tenant's current history, register
// it, and attempt promotion."
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/contract"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/features"
	"github.com/aristath/sentinel/internal/forecast"
	"github.com/aristath/sentinel/internal/storage"
	"github.com/aristath/sentinel/internal/training"
)

// DefaultPromotionThreshold.E's default 5%
// improvement gate.
const DefaultPromotionThreshold = 0.95

// minTrainingRows is the smallest feature table CrossValidate can
// split into 5 folds with at least one row per fold (training.CrossValidate
// requires nFolds+1 rows).
const minTrainingRows = 6

// HistorySource supplies the per-tenant transaction history the
// trainer turns into a cold-start feature table. internal/forecast's
// SQLFeatureSource implements this directly.
type HistorySource interface {
	Pairs(tenantID uuid.UUID) ([]forecast.PairKey, error)
	Category(tenantID, productID uuid.UUID) (string, error)
	History(tenantID uuid.UUID, pair forecast.PairKey, asOf time.Time, category string) ([]contract.Row, error)
}

// Trainer builds and registers a new candidate model version for a
// tenant.F's training contract.
type Trainer struct {
	source    HistorySource
	builder   *features.Builder
	encoder   *features.StableCategoryEncoder
	registry  *arena.Registry
	artifacts *storage.FileArtifactStore
	log       zerolog.Logger
}

// NewTrainer constructs a Trainer from its collaborators.
func NewTrainer(source HistorySource, builder *features.Builder, encoder *features.StableCategoryEncoder, registry *arena.Registry, artifacts *storage.FileArtifactStore, log zerolog.Logger) *Trainer {
	return &Trainer{
		source:    source,
		builder:   builder,
		encoder:   encoder,
		registry:  registry,
		artifacts: artifacts,
		log:       log.With().Str("component", "pipeline.trainer").Logger(),
	}
}

// Run assembles tenantID's cold-start feature table as of asOf across
// every (store, product) pair with transaction history, fits a
// GradientBoost/EWMA ensemble, cross-validates for the registry's
// metrics, persists the artifact, registers the version, and — when
// the new version lands as a candidate rather than an auto-promoted
// first champion — attempts promotion against the current champion.
// A gate failure is not an error: the candidate simply stays
// registered as a future challenger.
func (t *Trainer) Run(tenantID uuid.UUID, modelName string, asOf time.Time) (domain.ModelVersion, error) {
	pairs, err := t.source.Pairs(tenantID)
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("pipeline: list pairs: %w", err)
	}

	var X [][]float64
	var y []float64
	for _, pair := range pairs {
		category, err := t.source.Category(tenantID, pair.ProductID)
		if err != nil {
			return domain.ModelVersion{}, err
		}
		history, err := t.source.History(tenantID, pair, asOf, category)
		if err != nil {
			return domain.ModelVersion{}, err
		}
		for idx := range history {
			row, err := t.builder.BuildColdStart(history, idx)
			if err != nil {
				return domain.ModelVersion{}, fmt.Errorf("pipeline: build feature row: %w", err)
			}
			X = append(X, row.Vector())
			y = append(y, history[idx].Quantity)
		}
	}

	if len(y) < minTrainingRows {
		return domain.ModelVersion{}, apperr.New(apperr.KindDataUnavailable, "pipeline.Trainer.Run", nil).
			WithResource(fmt.Sprintf("rows=%d", len(y)))
	}

	_, avgFold, err := training.CrossValidate(X, y, func() training.Regressor {
		return training.NewGradientBoost(training.DefaultGradientBoostConfig())
	}, 5)
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("pipeline: cross-validate: %w", err)
	}

	gb := training.NewGradientBoost(training.DefaultGradientBoostConfig())
	if err := gb.Fit(X, y); err != nil {
		return domain.ModelVersion{}, fmt.Errorf("pipeline: fit gradient boost: %w", err)
	}
	ewma := training.NewEWMA(training.DefaultEWMAConfig())
	if err := ewma.Fit(X, y); err != nil {
		return domain.ModelVersion{}, fmt.Errorf("pipeline: fit ewma: %w", err)
	}

	metrics := domain.ModelMetrics{MAE: avgFold.MAE, MAPE: avgFold.MAPE, Coverage: avgFold.Coverage}

	version, err := t.registry.Register(tenantID, modelName, metrics, string(features.ColdStart), true)
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("pipeline: register version: %w", err)
	}

	artifact := arena.Artifact{
		Regressors: []training.Regressor{gb, ewma},
		Metadata: arena.ArtifactMetadata{
			Version:         version.Version,
			Tier:            string(features.ColdStart),
			FeatureCols:     features.ColdStartColumns(),
			Weights:         []float64{0.7, 0.3},
			TrainingRows:    len(y),
			Metrics:         metrics,
			CategoryMapping: t.encoder.Mapping(),
		},
	}
	if err := t.artifacts.Save(tenantID, modelName, artifact); err != nil {
		return domain.ModelVersion{}, fmt.Errorf("pipeline: save artifact: %w", err)
	}

	if version.Status != domain.ModelCandidate {
		t.log.Info().Str("model", modelName).Str("version", version.Version).Msg("first candidate auto-promoted to champion")
		return version, nil
	}

	promoted, err := t.registry.Promote(tenantID, modelName, version.Version, DefaultPromotionThreshold)
	if err != nil {
		if apperr.Is(err, apperr.KindStateMachineViolation) {
			t.log.Info().Str("model", modelName).Str("version", version.Version).Msg("candidate did not clear the promotion gate, staying registered")
			return version, nil
		}
		return domain.ModelVersion{}, fmt.Errorf("pipeline: evaluate promotion: %w", err)
	}
	return promoted, nil
}
