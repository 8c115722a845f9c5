package optimizer

import (
	"os"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupOptimizerDB(t *testing.T) *database.DB {
	t.Helper()
	f, err := os.CreateTemp("", "shelfops-optimizer-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(path) })

	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "optimizer"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec(`
		CREATE TABLE stores (id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, cluster_tier INTEGER NOT NULL DEFAULT 1);
		CREATE TABLE suppliers (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, name TEXT NOT NULL, on_time_rate REAL NOT NULL,
			lead_time_mean_days REAL NOT NULL, lead_time_variance_days REAL NOT NULL, distance_km REAL NOT NULL,
			cost_per_order REAL NOT NULL, payment_terms_days INTEGER NOT NULL, minimum_order_value REAL NOT NULL
		);
		CREATE TABLE products (id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, supplier_id TEXT NOT NULL,
			unit_cost REAL NOT NULL DEFAULT 0, holding_cost_per_day REAL NOT NULL DEFAULT 0);
		CREATE TABLE product_sourcing_rules (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, product_id TEXT NOT NULL, store_id TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL, source TEXT NOT NULL, lead_time_mean_days REAL NOT NULL,
			lead_time_variance_days REAL NOT NULL, min_order_qty INTEGER NOT NULL DEFAULT 1, cost_per_order REAL NOT NULL DEFAULT 0
		);
		CREATE TABLE reorder_points (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			rop INTEGER NOT NULL, safety_stock INTEGER NOT NULL, eoq INTEGER NOT NULL, lead_time_days REAL NOT NULL,
			service_level REAL NOT NULL, source_type TEXT NOT NULL, updated_at TEXT NOT NULL,
			UNIQUE (tenant_id, store_id, product_id)
		);
		CREATE TABLE reorder_history (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			old_rop INTEGER NOT NULL, new_rop INTEGER NOT NULL, old_safety_stock INTEGER NOT NULL,
			new_safety_stock INTEGER NOT NULL, old_eoq INTEGER NOT NULL, new_eoq INTEGER NOT NULL,
			rationale TEXT NOT NULL DEFAULT '{}', created_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err)
	return db
}

func TestSourcingResolver_PrefersStoreScopedRuleOverTenantWide(t *testing.T) {
	db := setupOptimizerDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	_, err := db.Conn().Exec(`INSERT INTO product_sourcing_rules
		(id, tenant_id, product_id, store_id, priority, source, lead_time_mean_days, lead_time_variance_days, min_order_qty, cost_per_order)
		VALUES (?, ?, ?, '', 1, 'dc', 2, 0.2, 10, 15)`,
		uuid.New().String(), tenant.String(), product.String())
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO product_sourcing_rules
		(id, tenant_id, product_id, store_id, priority, source, lead_time_mean_days, lead_time_variance_days, min_order_qty, cost_per_order)
		VALUES (?, ?, ?, ?, 1, 'regional_dc', 1, 0.1, 3, 8)`,
		uuid.New().String(), tenant.String(), product.String(), store.String())
	require.NoError(t, err)

	resolver := NewSourcingResolver(db, zerolog.Nop())
	info, err := resolver.Resolve(tenant, store, product)
	require.NoError(t, err)
	require.Equal(t, domain.SourceRegionalDC, info.SourceType)
	require.Equal(t, 1.0, info.LeadTimeMeanDays)
}

func TestSourcingResolver_FallsBackToSupplierWhenNoRule(t *testing.T) {
	db := setupOptimizerDB(t)
	tenant, product, supplier := uuid.New(), uuid.New(), uuid.New()

	_, err := db.Conn().Exec(`INSERT INTO suppliers
		(id, tenant_id, name, on_time_rate, lead_time_mean_days, lead_time_variance_days, distance_km, cost_per_order, payment_terms_days, minimum_order_value)
		VALUES (?, ?, 'Acme', 0.9, 5, 1, 100, 30, 30, 200)`,
		supplier.String(), tenant.String())
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO products (id, tenant_id, supplier_id) VALUES (?, ?, ?)`,
		product.String(), tenant.String(), supplier.String())
	require.NoError(t, err)

	resolver := NewSourcingResolver(db, zerolog.Nop())
	info, err := resolver.Resolve(tenant, uuid.New(), product)
	require.NoError(t, err)
	require.Equal(t, domain.SourceVendorDirect, info.SourceType)
	require.Equal(t, 0.9, info.VendorOnTimeRate)
	require.Equal(t, "Acme", info.SourceName)
}

func TestSQLStoreClusters_DefaultsToTierOneWhenMissing(t *testing.T) {
	db := setupOptimizerDB(t)
	clusters := NewSQLStoreClusters(db)
	tier, err := clusters.ClusterTier(uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, 1, tier)
}

func TestSQLReorderRepository_UpsertThenGetRoundTrips(t *testing.T) {
	db := setupOptimizerDB(t)
	repo := NewSQLReorderRepository(db, zerolog.Nop())
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()

	rp := domain.ReorderPoint{
		ID: uuid.New(), TenantID: tenant, StoreID: store, ProductID: product,
		ROP: 40, SafetyStock: 10, EOQ: 100, LeadTimeDays: 3, ServiceLevel: 0.95,
		SourceType: domain.SourceDC, UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(rp))

	got, ok, err := repo.Get(tenant, store, product)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 40, got.ROP)

	rp.ROP = 55
	require.NoError(t, repo.Upsert(rp))
	got, ok, err = repo.Get(tenant, store, product)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 55, got.ROP)
}

func TestSQLReorderRepository_LogHistoryPersistsRationale(t *testing.T) {
	db := setupOptimizerDB(t)
	repo := NewSQLReorderRepository(db, zerolog.Nop())

	err := repo.LogHistory(domain.ReorderHistory{
		ID: uuid.New(), TenantID: uuid.New(), StoreID: uuid.New(), ProductID: uuid.New(),
		NewROP: 10, NewSafetyStock: 3, NewEOQ: 50,
		Rationale: map[string]any{"z_score": 1.645}, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}
