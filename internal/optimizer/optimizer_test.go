package optimizer

import (
	"testing"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeForecastStats struct {
	stats DemandStats
	ok    bool
}

func (f fakeForecastStats) Stats(tenantID, storeID, productID uuid.UUID, horizonDays int) (DemandStats, bool, error) {
	return f.stats, f.ok, nil
}

type fakeSourcing struct{ info SourcingInfo }

func (f fakeSourcing) Resolve(tenantID, storeID, productID uuid.UUID) (SourcingInfo, error) {
	return f.info, nil
}

type fakeStoreClusters struct{ tier int }

func (f fakeStoreClusters) ClusterTier(tenantID, storeID uuid.UUID) (int, error) { return f.tier, nil }

type fakeProducts struct{ unitCost, holdingCostPerDay float64 }

func (f fakeProducts) Economics(tenantID, productID uuid.UUID) (float64, float64, error) {
	return f.unitCost, f.holdingCostPerDay, nil
}

type fakeReorderRepository struct {
	current      domain.ReorderPoint
	exists       bool
	upserted     []domain.ReorderPoint
	historyCalls []domain.ReorderHistory
}

func (f *fakeReorderRepository) Get(tenantID, storeID, productID uuid.UUID) (domain.ReorderPoint, bool, error) {
	return f.current, f.exists, nil
}

func (f *fakeReorderRepository) Upsert(rp domain.ReorderPoint) error {
	f.upserted = append(f.upserted, rp)
	return nil
}

func (f *fakeReorderRepository) LogHistory(h domain.ReorderHistory) error {
	f.historyCalls = append(f.historyCalls, h)
	return nil
}

func newTestOptimizer(stats DemandStats, ok bool, source SourcingInfo, tier int, repo *fakeReorderRepository) *Optimizer {
	return New(
		fakeForecastStats{stats: stats, ok: ok},
		fakeSourcing{info: source},
		fakeStoreClusters{tier: tier},
		fakeProducts{unitCost: 10, holdingCostPerDay: 0},
		repo,
		zerolog.Nop(),
	)
}

func TestOptimizer_OptimizeStoreProduct_SkipsWhenNoForecast(t *testing.T) {
	repo := &fakeReorderRepository{}
	o := newTestOptimizer(DemandStats{}, false, SourcingInfo{}, 1, repo)

	outcome, err := o.OptimizeStoreProduct(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, outcome)
	require.Empty(t, repo.upserted)
}

func TestOptimizer_OptimizeStoreProduct_CreatesWhenNoExistingRop(t *testing.T) {
	repo := &fakeReorderRepository{exists: false}
	source := SourcingInfo{LeadTimeMeanDays: 3, LeadTimeVariance: 0.5, VendorOnTimeRate: 0.97, CostPerOrder: 25, MinOrderQty: 5}
	o := newTestOptimizer(DemandStats{AvgDaily: 20, StdDev: 5}, true, source, 1, repo)

	outcome, err := o.OptimizeStoreProduct(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Equal(t, "created", outcome.Action)
	require.Len(t, repo.upserted, 1)
	require.Len(t, repo.historyCalls, 1)
	require.Equal(t, 0, repo.historyCalls[0].OldROP)
}

func TestOptimizer_OptimizeStoreProduct_SkipsBelowChangeThreshold(t *testing.T) {
	source := SourcingInfo{LeadTimeMeanDays: 3, LeadTimeVariance: 0.5, VendorOnTimeRate: 0.97, CostPerOrder: 25, MinOrderQty: 5}
	result := Calculate(Input{AvgDailyDemand: 20, DemandStdDev: 5, LeadTimeMeanDays: 3, LeadTimeVarianceDays: 0.5, VendorOnTimeRate: 0.97, ClusterTier: 1, ServiceLevel: 0.95, UnitCost: 10, CostPerOrder: 25, MinOrderQty: 5})

	repo := &fakeReorderRepository{exists: true, current: domain.ReorderPoint{ROP: result.ReorderPoint, SafetyStock: result.SafetyStock, EOQ: result.EOQ}}
	o := newTestOptimizer(DemandStats{AvgDaily: 20, StdDev: 5}, true, source, 1, repo)

	outcome, err := o.OptimizeStoreProduct(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Equal(t, "skipped", outcome.Action)
	require.Empty(t, repo.upserted)
	require.Empty(t, repo.historyCalls)
}

func TestOptimizer_OptimizeStoreProduct_UpdatesWhenChangeExceedsThreshold(t *testing.T) {
	source := SourcingInfo{LeadTimeMeanDays: 3, LeadTimeVariance: 0.5, VendorOnTimeRate: 0.97, CostPerOrder: 25, MinOrderQty: 5}
	repo := &fakeReorderRepository{exists: true, current: domain.ReorderPoint{ROP: 1, SafetyStock: 1, EOQ: 1}}
	o := newTestOptimizer(DemandStats{AvgDaily: 20, StdDev: 5}, true, source, 1, repo)

	outcome, err := o.OptimizeStoreProduct(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Equal(t, "updated", outcome.Action)
	require.Len(t, repo.upserted, 1)
	require.Len(t, repo.historyCalls, 1)
	require.Equal(t, 1, repo.historyCalls[0].OldROP)
}
