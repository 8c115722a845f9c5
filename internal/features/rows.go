package features

import "time"

// ColdStartRow is the 27-column feature schema derivable from any
// public dataset carrying only (date, store, product, quantity):
// 10 temporal, 12 rolling sales-history (7/14/30/90-day windows), 1
// category encoding, 1 promo flag, 3 external.
type ColdStartRow struct {
	// Temporal (10)
	DayOfWeek    float64
	DayOfMonth   float64
	DayOfYear    float64
	WeekOfYear   float64
	Month        float64
	Quarter      float64
	Year         float64
	IsWeekend    float64
	IsMonthStart float64
	IsMonthEnd   float64

	// Rolling sales-history, strictly causal (12)
	RollingMean7   float64
	RollingMean14  float64
	RollingMean30  float64
	RollingMean90  float64
	RollingStd7    float64
	RollingStd14   float64
	RollingStd30   float64
	RollingStd90   float64
	RollingTrend7  float64
	RollingTrend14 float64
	RollingTrend30 float64
	RollingTrend90 float64

	// Category + promo (2)
	CategoryEncoded float64
	IsPromotional   float64

	// External (3)
	TemperatureC    float64
	PrecipitationMM float64
	OilPriceUSD     float64
}

// ProductionRow is the 46-column schema: cold_start ∪ {product
// attributes, store performance, inventory snapshots, extended promo
// attributes}.
type ProductionRow struct {
	ColdStartRow

	// Product attributes (5)
	UnitCost          float64
	UnitPrice         float64
	Perishable        float64
	ShelfLifeDays     float64
	HoldingCostPerDay float64

	// Store performance (3)
	StoreInventoryTurnover float64
	StoreAvgDailySales     float64
	StoreClusterTier       float64

	// Inventory snapshots (5)
	CurrentStock  float64
	OnOrder       float64
	Reserved      float64
	Available     float64
	DaysOfSupply  float64

	// Extended promo attributes (6)
	PromoDepth          float64
	PromoDurationDays   float64
	DaysSincePromoStart float64
	DaysUntilPromoEnd   float64
	IsHolidayPromo      float64
	PriceVsCategoryAvg  float64
}

// coldStartColumns is the fixed column order Vector/ColdStartColumns
// report, so a model trained on one row's Vector() output lines up
// with every other row's — the "exact column set recorded" invariant.
var coldStartColumns = []string{
	"day_of_week", "day_of_month", "day_of_year", "week_of_year", "month", "quarter", "year",
	"is_weekend", "is_month_start", "is_month_end",
	"rolling_mean_7", "rolling_mean_14", "rolling_mean_30", "rolling_mean_90",
	"rolling_std_7", "rolling_std_14", "rolling_std_30", "rolling_std_90",
	"rolling_trend_7", "rolling_trend_14", "rolling_trend_30", "rolling_trend_90",
	"category_encoded", "is_promotional",
	"temperature_c", "precipitation_mm", "oil_price_usd",
}

var productionColumns = append(append([]string{}, coldStartColumns...),
	"unit_cost", "unit_price", "perishable", "shelf_life_days", "holding_cost_per_day",
	"store_inventory_turnover", "store_avg_daily_sales", "store_cluster_tier",
	"current_stock", "on_order", "reserved", "available", "days_of_supply",
	"promo_depth", "promo_duration_days", "days_since_promo_start", "days_until_promo_end",
	"is_holiday_promo", "price_vs_category_avg",
)

// ColdStartColumns returns the fixed 27-column name order for Vector.
func ColdStartColumns() []string { return append([]string{}, coldStartColumns...) }

// ProductionColumns returns the fixed 46-column name order for Vector.
func ProductionColumns() []string { return append([]string{}, productionColumns...) }

// Vector flattens row into the fixed cold_start column order.
func (row ColdStartRow) Vector() []float64 {
	return []float64{
		row.DayOfWeek, row.DayOfMonth, row.DayOfYear, row.WeekOfYear, row.Month, row.Quarter, row.Year,
		row.IsWeekend, row.IsMonthStart, row.IsMonthEnd,
		row.RollingMean7, row.RollingMean14, row.RollingMean30, row.RollingMean90,
		row.RollingStd7, row.RollingStd14, row.RollingStd30, row.RollingStd90,
		row.RollingTrend7, row.RollingTrend14, row.RollingTrend30, row.RollingTrend90,
		row.CategoryEncoded, row.IsPromotional,
		row.TemperatureC, row.PrecipitationMM, row.OilPriceUSD,
	}
}

// Vector flattens row into the fixed production column order
// (cold_start columns first, then the 19 production-only columns).
func (row ProductionRow) Vector() []float64 {
	v := row.ColdStartRow.Vector()
	return append(v,
		row.UnitCost, row.UnitPrice, row.Perishable, row.ShelfLifeDays, row.HoldingCostPerDay,
		row.StoreInventoryTurnover, row.StoreAvgDailySales, row.StoreClusterTier,
		row.CurrentStock, row.OnOrder, row.Reserved, row.Available, row.DaysOfSupply,
		row.PromoDepth, row.PromoDurationDays, row.DaysSincePromoStart, row.DaysUntilPromoEnd,
		row.IsHolidayPromo, row.PriceVsCategoryAvg,
	)
}

// Key identifies which (store, product, date) a row was built for,
// carried alongside the typed row rather than inside it so the
// feature schema stays frozen regardless of how callers key rows.
type Key struct {
	StoreID   string
	ProductID string
	Date      time.Time
}
