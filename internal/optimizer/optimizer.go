package optimizer

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultChangeThreshold is the minimum fractional change in reorder
// point that warrants writing an update.
const DefaultChangeThreshold = 0.10

// DefaultForecastHorizonDays is how many days of forecast the demand
// statistics are drawn from when a caller doesn't specify one.
const DefaultForecastHorizonDays = 14

// DemandStats is the average and standard deviation of forecasted
// daily demand over a forecast horizon.
type DemandStats struct {
	AvgDaily float64
	StdDev   float64
}

// ForecastStats resolves demand statistics for a (store, product)
// pair from persisted forecasts.
type ForecastStats interface {
	// Stats returns (stats, true, nil) if forecasts exist over the
	// horizon, or (zero, false, nil) if none are available yet — the
	// caller must skip the pair rather than calculate against zeros.
	Stats(tenantID, storeID, productID uuid.UUID, horizonDays int) (DemandStats, bool, error)
}

// Sourcing resolves the lead time and ordering economics for a
// (store, product) pair, following the sourcing-rule-first,
// supplier-lead-time-fallback priority.
type Sourcing interface {
	Resolve(tenantID, storeID, productID uuid.UUID) (SourcingInfo, error)
}

// SourcingInfo is the resolved lead-time and ordering economics for
// one (store, product) pair.
type SourcingInfo struct {
	SourceType       domain.SourceType
	SourceName       string
	LeadTimeMeanDays float64
	LeadTimeVariance float64
	MinOrderQty      int
	CostPerOrder     float64
	VendorOnTimeRate float64 // defaults to 0.95 when unknown
}

// StoreClusters resolves a store's volume cluster tier.
type StoreClusters interface {
	ClusterTier(tenantID, storeID uuid.UUID) (int, error)
}

// Products resolves the product attributes the optimizer needs:
// unit cost and per-day holding cost (0 means "derive from unit cost").
type Products interface {
	Economics(tenantID, productID uuid.UUID) (unitCost, holdingCostPerDay float64, err error)
}

// ReorderRepository is the persistence surface for reorder points and
// their audit history.
type ReorderRepository interface {
	Get(tenantID, storeID, productID uuid.UUID) (domain.ReorderPoint, bool, error)
	Upsert(rp domain.ReorderPoint) error
	LogHistory(h domain.ReorderHistory) error
}

// Optimizer recalculates reorder points for (store, product) pairs,
// writing an update only when it moves enough to matter.
type Optimizer struct {
	forecasts ForecastStats
	sourcing  Sourcing
	stores    StoreClusters
	products  Products
	repo      ReorderRepository
	log       zerolog.Logger

	changeThreshold float64
	horizonDays     int
	serviceLevel    float64
}

// New constructs an Optimizer over its five collaborators, using the
// package defaults for change threshold, forecast horizon, and service
// level.
func New(forecasts ForecastStats, sourcing Sourcing, stores StoreClusters, products Products, repo ReorderRepository, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		forecasts:       forecasts,
		sourcing:        sourcing,
		stores:          stores,
		products:        products,
		repo:            repo,
		log:             log.With().Str("component", "optimizer").Logger(),
		changeThreshold: DefaultChangeThreshold,
		horizonDays:     DefaultForecastHorizonDays,
		serviceLevel:    defaultServiceLevel,
	}
}

// Outcome describes what OptimizeStoreProduct did for one pair.
type Outcome struct {
	Action       string // "created", "updated", or "skipped"
	Result       Result
	PercentDelta float64
}

// OptimizeStoreProduct recalculates the reorder point for one (store,
// product) pair and, if the change exceeds the configured threshold
// (or no reorder point exists yet), persists the new value and logs
// the transition to ReorderHistory. A nil Outcome with a nil error
// means no forecast data was available to calculate against.
func (o *Optimizer) OptimizeStoreProduct(tenantID, storeID, productID uuid.UUID) (*Outcome, error) {
	stats, ok, err := o.forecasts.Stats(tenantID, storeID, productID, o.horizonDays)
	if err != nil {
		return nil, fmt.Errorf("optimizer: forecast stats: %w", err)
	}
	if !ok {
		return nil, nil
	}

	source, err := o.sourcing.Resolve(tenantID, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("optimizer: resolve sourcing: %w", err)
	}

	clusterTier, err := o.stores.ClusterTier(tenantID, storeID)
	if err != nil {
		return nil, fmt.Errorf("optimizer: store cluster tier: %w", err)
	}

	unitCost, holdingCostPerDay, err := o.products.Economics(tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("optimizer: product economics: %w", err)
	}

	result := Calculate(Input{
		AvgDailyDemand:       stats.AvgDaily,
		DemandStdDev:         stats.StdDev,
		LeadTimeMeanDays:     source.LeadTimeMeanDays,
		LeadTimeVarianceDays: source.LeadTimeVariance,
		VendorOnTimeRate:     source.VendorOnTimeRate,
		ClusterTier:          clusterTier,
		ServiceLevel:         o.serviceLevel,
		UnitCost:             unitCost,
		HoldingCostPerDay:    holdingCostPerDay,
		CostPerOrder:         source.CostPerOrder,
		MinOrderQty:          source.MinOrderQty,
	})

	current, exists, err := o.repo.Get(tenantID, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("optimizer: get current reorder point: %w", err)
	}

	now := time.Now().UTC()
	rationale := rationaleOf(stats, source, clusterTier, result)

	if !exists {
		rp := domain.ReorderPoint{
			ID: uuid.New(), TenantID: tenantID, StoreID: storeID, ProductID: productID,
			ROP: result.ReorderPoint, SafetyStock: result.SafetyStock, EOQ: result.EOQ,
			LeadTimeDays: source.LeadTimeMeanDays, ServiceLevel: o.serviceLevel,
			SourceType: source.SourceType, UpdatedAt: now,
		}
		if err := o.repo.Upsert(rp); err != nil {
			return nil, fmt.Errorf("optimizer: create reorder point: %w", err)
		}
		if err := o.repo.LogHistory(domain.ReorderHistory{
			ID: uuid.New(), TenantID: tenantID, StoreID: storeID, ProductID: productID,
			NewROP: result.ReorderPoint, NewSafetyStock: result.SafetyStock, NewEOQ: result.EOQ,
			Rationale: rationale, CreatedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("optimizer: log reorder history: %w", err)
		}
		return &Outcome{Action: "created", Result: result}, nil
	}

	pctChange := math.Abs(float64(result.ReorderPoint-current.ROP)) / math.Max(float64(current.ROP), 1)
	if pctChange < o.changeThreshold {
		return &Outcome{Action: "skipped", Result: result, PercentDelta: pctChange}, nil
	}

	if err := o.repo.LogHistory(domain.ReorderHistory{
		ID: uuid.New(), TenantID: tenantID, StoreID: storeID, ProductID: productID,
		OldROP: current.ROP, NewROP: result.ReorderPoint,
		OldSafetyStock: current.SafetyStock, NewSafetyStock: result.SafetyStock,
		OldEOQ: current.EOQ, NewEOQ: result.EOQ,
		Rationale: rationale, CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("optimizer: log reorder history: %w", err)
	}

	current.ROP = result.ReorderPoint
	current.SafetyStock = result.SafetyStock
	current.EOQ = result.EOQ
	current.LeadTimeDays = source.LeadTimeMeanDays
	current.SourceType = source.SourceType
	current.UpdatedAt = now
	if err := o.repo.Upsert(current); err != nil {
		return nil, fmt.Errorf("optimizer: update reorder point: %w", err)
	}

	o.log.Info().Str("store_id", storeID.String()).Str("product_id", productID.String()).
		Int("new_rop", result.ReorderPoint).Float64("pct_change", pctChange).
		Msg("reorder point updated")

	return &Outcome{Action: "updated", Result: result, PercentDelta: pctChange}, nil
}

func rationaleOf(stats DemandStats, source SourcingInfo, clusterTier int, result Result) map[string]any {
	return map[string]any{
		"source_type":            string(source.SourceType),
		"source_name":            source.SourceName,
		"lead_time_days":         source.LeadTimeMeanDays,
		"lead_time_variance":     source.LeadTimeVariance,
		"avg_daily_demand":       stats.AvgDaily,
		"demand_std_dev":         stats.StdDev,
		"z_score":                result.ZScore,
		"vendor_on_time_rate":    source.VendorOnTimeRate,
		"reliability_multiplier": result.ReliabilityMultiplier,
		"cluster_tier":           clusterTier,
		"cluster_multiplier":     result.ClusterMultiplierValue,
		"holding_cost_annual":    result.AnnualHoldingCost,
		"cost_per_order":         source.CostPerOrder,
		"min_order_qty":          source.MinOrderQty,
	}
}
