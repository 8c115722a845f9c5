package alerts

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/database"
)

func setupFactsReaderDBs(t *testing.T) (factsDB, coreDB *database.DB) {
	t.Helper()

	newDB := func(name string) *database.DB {
		f, err := os.CreateTemp("", "shelfops-"+name+"-*.db")
		require.NoError(t, err)
		path := f.Name()
		require.NoError(t, f.Close())
		db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: name})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close(); os.Remove(path) })
		return db
	}

	factsDB = newDB("facts")
	_, err := factsDB.Conn().Exec(`
		CREATE TABLE inventory_levels (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			ts TEXT NOT NULL, on_hand INTEGER NOT NULL, available INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE transactions (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			ts TEXT NOT NULL, quantity INTEGER NOT NULL, type TEXT NOT NULL
		);
		CREATE TABLE demand_forecasts (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			forecast_date TEXT NOT NULL, model_version TEXT NOT NULL, forecasted_demand REAL NOT NULL, created_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err)

	coreDB = newDB("core")
	_, err = coreDB.Conn().Exec(`
		CREATE TABLE products (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, category TEXT NOT NULL DEFAULT '',
			lifecycle TEXT NOT NULL DEFAULT 'active', unit_price REAL NOT NULL DEFAULT 0
		);
	`)
	require.NoError(t, err)

	return factsDB, coreDB
}

func TestInventorySnapshotReader_ActivePairsAndAvailable(t *testing.T) {
	factsDB, coreDB := setupFactsReaderDBs(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	_, err := factsDB.Conn().Exec(`INSERT INTO inventory_levels (id, tenant_id, store_id, product_id, ts, on_hand, available)
		VALUES (?, ?, ?, ?, ?, 10, 8)`, uuid.New().String(), tenant.String(), store.String(), product.String(), "2026-07-30T00:00:00Z")
	require.NoError(t, err)
	_, err = factsDB.Conn().Exec(`INSERT INTO inventory_levels (id, tenant_id, store_id, product_id, ts, on_hand, available)
		VALUES (?, ?, ?, ?, ?, 5, 3)`, uuid.New().String(), tenant.String(), store.String(), product.String(), "2026-07-31T00:00:00Z")
	require.NoError(t, err)

	reader := NewInventorySnapshotReader(factsDB, coreDB)
	pairs, err := reader.ActivePairs(tenant)
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	available, ok, err := reader.Available(tenant, pairs[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3.0, available)
}

func TestForecastSumReader_SumsForecastsInWindow(t *testing.T) {
	factsDB, coreDB := setupFactsReaderDBs(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	insert := func(date string, demand float64) {
		_, err := factsDB.Conn().Exec(`INSERT INTO demand_forecasts
			(id, tenant_id, store_id, product_id, forecast_date, model_version, forecasted_demand, created_at)
			VALUES (?, ?, ?, ?, ?, 'v1', ?, ?)`,
			uuid.New().String(), tenant.String(), store.String(), product.String(), date, demand, date)
		require.NoError(t, err)
	}
	today := time.Now().UTC()
	insert(today.Format("2006-01-02"), 10)
	insert(today.AddDate(0, 0, 3).Format("2006-01-02"), 10)
	insert(today.AddDate(0, 0, 20).Format("2006-01-02"), 1000)

	reader := NewForecastSumReader(factsDB)
	_ = coreDB
	sum, ok, err := reader.SumNextDays(tenant, Pair{StoreID: store, ProductID: product}, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 20.0, sum)
}

func TestProductLifecycleGate_ActiveVsDiscontinued(t *testing.T) {
	factsDB, coreDB := setupFactsReaderDBs(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	_, err := coreDB.Conn().Exec(`INSERT INTO products (id, tenant_id, lifecycle) VALUES (?, ?, 'discontinued')`,
		product.String(), tenant.String())
	require.NoError(t, err)
	_ = factsDB

	gate := NewProductLifecycleGate(coreDB)
	active, err := gate.IsActive(tenant, Pair{StoreID: store, ProductID: product})
	require.NoError(t, err)
	require.False(t, active)

	other := uuid.New()
	_, err = coreDB.Conn().Exec(`INSERT INTO products (id, tenant_id, lifecycle) VALUES (?, ?, 'active')`,
		other.String(), tenant.String())
	require.NoError(t, err)
	active, err = gate.IsActive(tenant, Pair{StoreID: store, ProductID: other})
	require.NoError(t, err)
	require.True(t, active)
}

func TestGhostStockReader_OnHandAndTrailingDays(t *testing.T) {
	factsDB, coreDB := setupFactsReaderDBs(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	_, err := coreDB.Conn().Exec(`INSERT INTO products (id, tenant_id, unit_price) VALUES (?, ?, 9.5)`,
		product.String(), tenant.String())
	require.NoError(t, err)
	_, err = factsDB.Conn().Exec(`INSERT INTO inventory_levels (id, tenant_id, store_id, product_id, ts, on_hand, available)
		VALUES (?, ?, ?, ?, ?, 20, 20)`, uuid.New().String(), tenant.String(), store.String(), product.String(), "2026-07-31T00:00:00Z")
	require.NoError(t, err)

	reader := NewGhostStockReader(factsDB, coreDB)
	qty, unitPrice, ok, err := reader.OnHand(tenant, Pair{StoreID: store, ProductID: product})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 20.0, qty)
	require.Equal(t, 9.5, unitPrice)

	day := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	_, err = factsDB.Conn().Exec(`INSERT INTO demand_forecasts
		(id, tenant_id, store_id, product_id, forecast_date, model_version, forecasted_demand, created_at)
		VALUES (?, ?, ?, ?, ?, 'v1', 10, ?)`,
		uuid.New().String(), tenant.String(), store.String(), product.String(), day, day)
	require.NoError(t, err)
	_, err = factsDB.Conn().Exec(`INSERT INTO transactions (id, tenant_id, store_id, product_id, ts, quantity, type)
		VALUES (?, ?, ?, ?, ?, 1, 'sale')`,
		uuid.New().String(), tenant.String(), store.String(), product.String(), day+"T10:00:00Z")
	require.NoError(t, err)

	days, err := reader.TrailingDays(tenant, Pair{StoreID: store, ProductID: product}, 7)
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Equal(t, 1.0, days[0].Actual)
	require.Equal(t, 10.0, days[0].Forecast)
}
