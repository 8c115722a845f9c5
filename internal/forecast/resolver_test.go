package forecast

import (
	"os"
	"testing"

	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupResolverRegistry(t *testing.T) *arena.Registry {
	t.Helper()
	f, err := os.CreateTemp("", "shelfops-forecast-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(path) })

	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "forecast"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec(`
		CREATE TABLE IF NOT EXISTS model_versions (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, model_name TEXT NOT NULL,
			version TEXT NOT NULL, status TEXT NOT NULL,
			mae REAL NOT NULL, mape REAL NOT NULL, coverage REAL NOT NULL,
			routing_weight REAL NOT NULL, smoke_test_passed INTEGER NOT NULL,
			feature_tier TEXT NOT NULL, created_at TEXT NOT NULL,
			promoted_at TEXT, archived_at TEXT,
			UNIQUE(tenant_id, model_name, version)
		)`)
	require.NoError(t, err)

	return arena.NewRegistry(db, zerolog.Nop())
}

func TestVersionResolver_ExplicitOverrideBypassesChampion(t *testing.T) {
	reg := setupResolverRegistry(t)
	tenant := uuid.New()

	_, err := reg.Register(tenant, "demand", domain.ModelMetrics{MAE: 1, MAPE: 0.1, Coverage: 0.9}, "production", true)
	require.NoError(t, err)
	candidate, err := reg.Register(tenant, "demand", domain.ModelMetrics{MAE: 0.5, MAPE: 0.05, Coverage: 0.95}, "production", true)
	require.NoError(t, err)

	resolver := NewVersionResolver(reg)
	resolved, err := resolver.Resolve(tenant, "demand", candidate.Version)
	require.NoError(t, err)
	require.Equal(t, candidate.Version, resolved.Version)
}

func TestVersionResolver_DefaultsToChampion(t *testing.T) {
	reg := setupResolverRegistry(t)
	tenant := uuid.New()

	champion, err := reg.Register(tenant, "demand", domain.ModelMetrics{MAE: 1, MAPE: 0.1, Coverage: 0.9}, "production", true)
	require.NoError(t, err)

	resolver := NewVersionResolver(reg)
	resolved, err := resolver.Resolve(tenant, "demand", "")
	require.NoError(t, err)
	require.Equal(t, champion.Version, resolved.Version)
	require.Equal(t, domain.ModelChampion, resolved.Status)
}

func TestVersionResolver_RemembersLastKnownChampion(t *testing.T) {
	reg := setupResolverRegistry(t)
	tenant := uuid.New()

	champion, err := reg.Register(tenant, "demand", domain.ModelMetrics{MAE: 1, MAPE: 0.1, Coverage: 0.9}, "production", true)
	require.NoError(t, err)

	resolver := NewVersionResolver(reg)
	_, err = resolver.Resolve(tenant, "demand", "")
	require.NoError(t, err)

	resolver.remember(tenant, "demand", champion)
	cached, found := resolver.recall(tenant, "demand")
	require.True(t, found)
	require.Equal(t, champion.Version, cached.Version)
}

func TestVersionResolver_NoChampionAndNoCacheErrors(t *testing.T) {
	reg := setupResolverRegistry(t)
	resolver := NewVersionResolver(reg)

	_, err := resolver.Resolve(uuid.New(), "demand", "")
	require.Error(t, err)
}
