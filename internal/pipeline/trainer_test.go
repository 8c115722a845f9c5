package pipeline

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/contract"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/features"
	"github.com/aristath/sentinel/internal/forecast"
	"github.com/aristath/sentinel/internal/storage"
)

type fakeHistorySource struct {
	pairs    []forecast.PairKey
	byPair   map[forecast.PairKey][]contract.Row
	category string
}

func (f *fakeHistorySource) Pairs(tenantID uuid.UUID) ([]forecast.PairKey, error) {
	return f.pairs, nil
}

func (f *fakeHistorySource) Category(tenantID, productID uuid.UUID) (string, error) {
	return f.category, nil
}

func (f *fakeHistorySource) History(tenantID uuid.UUID, pair forecast.PairKey, asOf time.Time, category string) ([]contract.Row, error) {
	return f.byPair[pair], nil
}

func setupTrainerRegistry(t *testing.T) *arena.Registry {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "test_trainer_models_*.db")
	require.NoError(t, err)
	path := tmpFile.Name()
	require.NoError(t, tmpFile.Close())
	t.Cleanup(func() { os.Remove(path) })

	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "models"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS model_versions (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, model_name TEXT NOT NULL, version TEXT NOT NULL,
			status TEXT NOT NULL, mae REAL NOT NULL DEFAULT 0, mape REAL NOT NULL DEFAULT 0,
			coverage REAL NOT NULL DEFAULT 0, routing_weight REAL NOT NULL DEFAULT 0,
			smoke_test_passed INTEGER NOT NULL DEFAULT 0, feature_tier TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL, promoted_at TEXT, archived_at TEXT,
			UNIQUE (tenant_id, model_name, version)
		)`)
	require.NoError(t, err)
	return arena.NewRegistry(db, zerolog.Nop())
}

func syntheticPairHistory(storeID, productID uuid.UUID, n int, base float64) []contract.Row {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]contract.Row, n)
	for i := 0; i < n; i++ {
		rows[i] = contract.Row{
			Date:      start.AddDate(0, 0, i),
			StoreID:   storeID.String(),
			ProductID: productID.String(),
			Quantity:  base + float64(i%5),
			Category:  "grocery",
		}
	}
	return rows
}

func TestTrainer_Run_FirstCandidateAutoPromotesToChampion(t *testing.T) {
	registry := setupTrainerRegistry(t)
	artifacts := storage.NewFileArtifactStore(t.TempDir(), zerolog.Nop())
	builder := features.New(nil, features.NewStableCategoryEncoder())

	storeID, productID := uuid.New(), uuid.New()
	pair := forecast.PairKey{StoreID: storeID, ProductID: productID}
	source := &fakeHistorySource{
		pairs:    []forecast.PairKey{pair},
		byPair:   map[forecast.PairKey][]contract.Row{pair: syntheticPairHistory(storeID, productID, 10, 20)},
		category: "grocery",
	}

	trainer := NewTrainer(source, builder, features.NewStableCategoryEncoder(), registry, artifacts, zerolog.Nop())
	tenantID := uuid.New()
	version, err := trainer.Run(tenantID, "demand_forecast", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.ModelChampion, version.Status)

	loaded, err := artifacts.Load(tenantID, "demand_forecast", version.Version)
	require.NoError(t, err)
	assert.Len(t, loaded.Regressors, 2)
	assert.Equal(t, 10, loaded.Metadata.TrainingRows)
}

func TestTrainer_Run_InsufficientHistoryIsDataUnavailable(t *testing.T) {
	registry := setupTrainerRegistry(t)
	artifacts := storage.NewFileArtifactStore(t.TempDir(), zerolog.Nop())
	builder := features.New(nil, features.NewStableCategoryEncoder())

	storeID, productID := uuid.New(), uuid.New()
	pair := forecast.PairKey{StoreID: storeID, ProductID: productID}
	source := &fakeHistorySource{
		pairs:    []forecast.PairKey{pair},
		byPair:   map[forecast.PairKey][]contract.Row{pair: syntheticPairHistory(storeID, productID, 2, 5)},
		category: "grocery",
	}

	trainer := NewTrainer(source, builder, features.NewStableCategoryEncoder(), registry, artifacts, zerolog.Nop())
	_, err := trainer.Run(uuid.New(), "demand_forecast", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}
