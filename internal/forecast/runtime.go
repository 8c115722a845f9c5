package forecast

import (
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/features"
	"github.com/google/uuid"
)

// PairKey identifies one (store, product) forecasting target.
type PairKey struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
}

// ArtifactStore loads the fitted regressor ensemble for an exact
// (tenant, model_name, version), as produced by the training pipeline
// and persisted by internal/storage.
type ArtifactStore interface {
	Load(tenantID uuid.UUID, modelName, version string) (arena.Artifact, error)
}

// FeatureSource supplies the forecasting universe and, for each pair,
// the most recently observed feature row to project forward.
type FeatureSource interface {
	// Pairs lists every (store, product) combination tenantID forecasts.
	Pairs(tenantID uuid.UUID) ([]PairKey, error)
	// LatestRow returns the most recent feature row on or before asOf
	// for pair, built from observed history only. ok is false when the
	// pair has no history yet.
	LatestRow(tenantID uuid.UUID, pair PairKey, asOf time.Time) (features.ProductionRow, bool, error)
}

// Writer persists one day's forecasts, replacing whatever previously
// existed for (tenant, model_version, date) so re-running a day is
// idempotent.
type Writer interface {
	Replace(tenantID uuid.UUID, modelVersion string, date time.Time, rows []domain.DemandForecast) error
}

// Runtime generates demand forecasts for a rolling horizon: resolve
// the serving version, load its artifact, then for each day project
// every pair's latest feature row forward with its temporal columns
// overridden, predict, clip to non-negative, and persist
// deterministically.
type Runtime struct {
	resolver  *VersionResolver
	artifacts ArtifactStore
	source    FeatureSource
	writer    Writer
}

// NewRuntime constructs a Runtime from its four collaborators.
func NewRuntime(resolver *VersionResolver, artifacts ArtifactStore, source FeatureSource, writer Writer) *Runtime {
	return &Runtime{resolver: resolver, artifacts: artifacts, source: source, writer: writer}
}

// Generate produces and persists forecasts for tenantID/modelName over
// [asOf+1, asOf+horizonDays]. override, if non-empty, pins the serving
// version instead of resolving the champion.
func (rt *Runtime) Generate(tenantID uuid.UUID, modelName string, horizonDays int, override string, asOf time.Time) ([]domain.DemandForecast, error) {
	if horizonDays <= 0 {
		return nil, fmt.Errorf("forecast: horizonDays must be positive, got %d", horizonDays)
	}

	version, err := rt.resolver.Resolve(tenantID, modelName, override)
	if err != nil {
		return nil, fmt.Errorf("forecast: resolve version: %w", err)
	}

	artifact, err := rt.artifacts.Load(tenantID, modelName, version.Version)
	if err != nil {
		return nil, fmt.Errorf("forecast: load artifact: %w", err)
	}

	pairs, err := rt.source.Pairs(tenantID)
	if err != nil {
		return nil, fmt.Errorf("forecast: list pairs: %w", err)
	}

	var all []domain.DemandForecast
	for d := 1; d <= horizonDays; d++ {
		date := asOf.AddDate(0, 0, d)

		dayRows, err := rt.generateDay(tenantID, version.Version, pairs, artifact, asOf, date)
		if err != nil {
			return nil, err
		}

		if err := rt.writer.Replace(tenantID, version.Version, date, dayRows); err != nil {
			return nil, fmt.Errorf("forecast: persist day %s: %w", date.Format("2006-01-02"), err)
		}
		all = append(all, dayRows...)
	}
	return all, nil
}

func (rt *Runtime) generateDay(tenantID uuid.UUID, version string, pairs []PairKey, artifact arena.Artifact, asOf, date time.Time) ([]domain.DemandForecast, error) {
	rows := make([]domain.DemandForecast, 0, len(pairs))
	generatedAt := time.Now().UTC()

	for _, pair := range pairs {
		latest, ok, err := rt.source.LatestRow(tenantID, pair, asOf)
		if err != nil {
			return nil, fmt.Errorf("forecast: latest row for store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok {
			continue
		}

		projected := latest
		projected.ColdStartRow = features.OverrideTemporal(latest.ColdStartRow, date)

		predictions, err := artifact.Predict([][]float64{projected.Vector()})
		if err != nil {
			return nil, fmt.Errorf("forecast: predict store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if len(predictions) != 1 {
			return nil, fmt.Errorf("forecast: regressor returned %d predictions for 1 input row", len(predictions))
		}
		pred := predictions[0]

		forecasted := clampNonNegative(pred.P50)
		lower := clampNonNegative(pred.P10)
		upper := clampNonNegative(pred.P90)

		rows = append(rows, domain.DemandForecast{
			ID:               uuid.New(),
			TenantID:         tenantID,
			StoreID:          pair.StoreID,
			ProductID:        pair.ProductID,
			ForecastDate:     date,
			ModelVersion:     version,
			ForecastedDemand: forecasted,
			LowerBound:       &lower,
			UpperBound:       &upper,
			CreatedAt:        generatedAt,
		})
	}
	return rows, nil
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
