// Package optimizer turns demand forecasts and sourcing data into
// reorder points, safety stock, and economic order quantities, using
// the service-level/EOQ formulas original_source/backend/inventory/
// optimizer.py implements.
package optimizer

import "math"

// serviceLevelZScores maps a target service level to its standard
// normal Z-score. Lookup picks the closest configured level.
var serviceLevelZScores = map[float64]float64{
	0.90:  1.282,
	0.95:  1.645,
	0.975: 1.960,
	0.99:  2.326,
}

// reliabilityBand is a half-open [Low, High) on-time-rate bucket
// mapping to a safety-stock multiplier; lower reliability means a
// bigger buffer.
type reliabilityBand struct {
	Low, High  float64
	Multiplier float64
}

var reliabilityBands = []reliabilityBand{
	{0.95, 1.01, 1.0},
	{0.80, 0.95, 1.2},
	{0.60, 0.80, 1.5},
	{0.00, 0.60, 1.8},
}

// clusterMultipliers scales safety stock by a store's volume tier:
// high-volume stores (tier 0) carry a bigger buffer, low-volume stores
// (tier 2) carry less to control holding cost.
var clusterMultipliers = map[int]float64{
	0: 1.15,
	1: 1.00,
	2: 0.85,
}

const (
	defaultServiceLevel        = 0.95
	defaultHoldingCostFraction = 0.25 // of unit cost, annualized
	defaultClusterMultiplier   = 1.00
	daysPerYear                = 365.0
)

// ZScore returns the Z-score for the service level closest to target.
func ZScore(target float64) float64 {
	if target == 0 {
		target = defaultServiceLevel
	}
	best := defaultServiceLevel
	bestDist := math.Abs(best - target)
	for level := range serviceLevelZScores {
		if d := math.Abs(level - target); d < bestDist {
			best, bestDist = level, d
		}
	}
	return serviceLevelZScores[best]
}

// ReliabilityMultiplier maps a supplier's on-time rate (0..1) to a
// safety-stock multiplier.
func ReliabilityMultiplier(onTimeRate float64) float64 {
	for _, band := range reliabilityBands {
		if onTimeRate >= band.Low && onTimeRate < band.High {
			return band.Multiplier
		}
	}
	return 1.0
}

// ClusterMultiplier maps a store's cluster tier to a safety-stock
// multiplier, defaulting to tier 1's neutral multiplier for unknown
// tiers.
func ClusterMultiplier(tier int) float64 {
	if m, ok := clusterMultipliers[tier]; ok {
		return m
	}
	return defaultClusterMultiplier
}

// Input carries everything Calculate needs for one (store, product)
// reorder-point calculation.
type Input struct {
	AvgDailyDemand       float64
	DemandStdDev         float64
	LeadTimeMeanDays     float64
	LeadTimeVarianceDays float64
	VendorOnTimeRate     float64
	ClusterTier          int
	ServiceLevel         float64 // 0 defaults to defaultServiceLevel

	UnitCost          float64
	HoldingCostPerDay float64 // 0 means derive from UnitCost * defaultHoldingCostFraction
	CostPerOrder      float64
	MinOrderQty       int
}

// Result is one reorder-point calculation, plus the rationale values
// that get logged alongside it in ReorderHistory.
type Result struct {
	SafetyStock  int
	ReorderPoint int
	EOQ          int

	ZScore                 float64
	ReliabilityMultiplier  float64
	ClusterMultiplierValue float64
	AnnualHoldingCost      float64
}

// Calculate implements steps 3-7: safety stock, reorder
// point, and EOQ, given demand and sourcing statistics already
// resolved by the caller.
func Calculate(in Input) Result {
	z := ZScore(in.ServiceLevel)
	reliability := ReliabilityMultiplier(in.VendorOnTimeRate)
	cluster := ClusterMultiplier(in.ClusterTier)

	demandComponent := in.LeadTimeMeanDays * (in.DemandStdDev * in.DemandStdDev)
	leadTimeComponent := (in.AvgDailyDemand * in.AvgDailyDemand) * (in.LeadTimeVarianceDays * in.LeadTimeVarianceDays)
	combinedStd := math.Sqrt(demandComponent + leadTimeComponent)

	safetyStock := int(math.Ceil(math.Max(1, z*combinedStd*reliability*cluster)))
	reorderPoint := int(math.Ceil(math.Max(1, in.AvgDailyDemand*in.LeadTimeMeanDays+float64(safetyStock))))

	annualHoldingCost := in.HoldingCostPerDay * daysPerYear
	if in.HoldingCostPerDay <= 0 {
		annualHoldingCost = in.UnitCost * defaultHoldingCostFraction
	}
	annualDemand := in.AvgDailyDemand * daysPerYear
	eoq := wilsonEOQ(annualDemand, in.CostPerOrder, annualHoldingCost)
	if in.MinOrderQty > eoq {
		eoq = in.MinOrderQty
	}

	return Result{
		SafetyStock:            safetyStock,
		ReorderPoint:           reorderPoint,
		EOQ:                    eoq,
		ZScore:                 z,
		ReliabilityMultiplier:  reliability,
		ClusterMultiplierValue: cluster,
		AnnualHoldingCost:      annualHoldingCost,
	}
}

// wilsonEOQ computes the Wilson economic order quantity, rounding to
// the nearest unit and floored at 1 when inputs are degenerate.
func wilsonEOQ(annualDemand, costPerOrder, annualHoldingCost float64) int {
	if annualDemand <= 0 || costPerOrder <= 0 || annualHoldingCost <= 0 {
		return 1
	}
	eoq := math.Sqrt((2 * annualDemand * costPerOrder) / annualHoldingCost)
	rounded := int(math.Round(eoq))
	if rounded < 1 {
		return 1
	}
	return rounded
}
