package optimizer

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/database"
)

func setupForecastStatsDB(t *testing.T) *database.DB {
	t.Helper()
	f, err := os.CreateTemp("", "shelfops-forecaststats-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())

	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "facts"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(); os.Remove(path) })

	_, err = db.Conn().Exec(`
		CREATE TABLE demand_forecasts (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			forecast_date TEXT NOT NULL, model_version TEXT NOT NULL, forecasted_demand REAL NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err)
	return db
}

func TestSQLForecastStats_AveragesOverHorizon(t *testing.T) {
	db := setupForecastStatsDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	insert := func(date string, demand float64, createdAt string) {
		_, err := db.Conn().Exec(`
			INSERT INTO demand_forecasts (id, tenant_id, store_id, product_id, forecast_date, model_version, forecasted_demand, created_at)
			VALUES (?, ?, ?, ?, ?, 'v1', ?, ?)`,
			uuid.New().String(), tenant.String(), store.String(), product.String(), date, demand, createdAt)
		require.NoError(t, err)
	}
	insert("2026-08-01", 10, "2026-07-31T00:00:00Z")
	insert("2026-08-02", 20, "2026-07-31T00:00:00Z")
	insert("2026-08-03", 30, "2026-07-31T00:00:00Z")

	stats := NewSQLForecastStats(db)
	result, ok, err := stats.Stats(tenant, store, product, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 20.0, result.AvgDaily, 0.001)
}

func TestSQLForecastStats_UsesLatestModelVersion(t *testing.T) {
	db := setupForecastStatsDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	insertVersion := func(version string, demand float64, createdAt string) {
		_, err := db.Conn().Exec(`
			INSERT INTO demand_forecasts (id, tenant_id, store_id, product_id, forecast_date, model_version, forecasted_demand, created_at)
			VALUES (?, ?, ?, ?, '2026-08-01', ?, ?, ?)`,
			uuid.New().String(), tenant.String(), store.String(), product.String(), version, demand, createdAt)
		require.NoError(t, err)
	}
	insertVersion("v1", 100, "2026-07-01T00:00:00Z")
	insertVersion("v2", 5, "2026-07-31T00:00:00Z")

	stats := NewSQLForecastStats(db)
	result, ok, err := stats.Stats(tenant, store, product, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 5.0, result.AvgDaily, 0.001)
}

func TestSQLForecastStats_ReturnsFalseWhenNoForecasts(t *testing.T) {
	db := setupForecastStatsDB(t)
	stats := NewSQLForecastStats(db)
	_, ok, err := stats.Stats(uuid.New(), uuid.New(), uuid.New(), 7)
	require.NoError(t, err)
	require.False(t, ok)
}
