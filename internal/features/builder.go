package features

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/sentinel/internal/contract"
	talib "github.com/markcheno/go-talib"
)

// ExternalProvider supplies the three cold-start external signals
// (temperature, precipitation, oil price) for a given date/store. A
// tenant without such a feed can pass nil; the builder then leaves
// those columns at zero.
type ExternalProvider interface {
	Lookup(date time.Time, storeID string) (temperatureC, precipitationMM, oilPriceUSD float64, ok bool)
}

// CategoryEncoder maps a category string to a stable numeric code. A
// simple registry-backed encoder is supplied in category.go; callers
// needing determinism across runs should reuse the same encoder.
type CategoryEncoder interface {
	Encode(category string) float64
}

// ProductionContext carries the production-tier inputs a cold-start
// row alone can't derive: product attributes, store performance,
// current inventory snapshot, and promo campaign attributes.
type ProductionContext struct {
	UnitCost          float64
	UnitPrice         float64
	Perishable        bool
	ShelfLifeDays     int
	HoldingCostPerDay float64

	StoreInventoryTurnover float64
	StoreAvgDailySales     float64
	StoreClusterTier       int

	CurrentStock int
	OnOrder      int
	Reserved     int
	Available    int
	DaysOfSupply float64

	PromoDepth          float64
	PromoDurationDays   int
	DaysSincePromoStart int
	DaysUntilPromoEnd   int
	IsHolidayPromo      bool
	CategoryAvgPrice    float64
}

// Builder derives typed feature rows from a canonical, date-ordered
// history of one (store, product) pair's contract.Row values.
type Builder struct {
	external ExternalProvider
	category CategoryEncoder
}

// New constructs a Builder. Either dependency may be nil.
func New(external ExternalProvider, category CategoryEncoder) *Builder {
	return &Builder{external: external, category: category}
}

const rollingWindowCount = 4

var rollingWindows = [rollingWindowCount]int{7, 14, 30, 90}

// BuildColdStart derives the cold_start row for history[idx], using
// only history[:idx+1] for every rolling aggregate — the causality
// invariant ("only data with date ≤ t contributes").
func (b *Builder) BuildColdStart(history []contract.Row, idx int) (ColdStartRow, error) {
	if idx < 0 || idx >= len(history) {
		return ColdStartRow{}, fmt.Errorf("features: index %d out of range for history of length %d", idx, len(history))
	}
	row := history[idx]
	d := row.Date

	quantities := make([]float64, idx+1)
	for i := 0; i <= idx; i++ {
		quantities[i] = history[i].Quantity
	}

	out := ColdStartRow{
		DayOfWeek:    float64(d.Weekday()),
		DayOfMonth:   float64(d.Day()),
		DayOfYear:    float64(d.YearDay()),
		WeekOfYear:   float64(isoWeek(d)),
		Month:        float64(d.Month()),
		Quarter:      float64((int(d.Month())-1)/3 + 1),
		Year:         float64(d.Year()),
		IsWeekend:    boolToFloat(d.Weekday() == time.Saturday || d.Weekday() == time.Sunday),
		IsMonthStart: boolToFloat(d.Day() == 1),
		IsMonthEnd:   boolToFloat(d.AddDate(0, 0, 1).Month() != d.Month()),
		IsPromotional: boolToFloat(row.IsPromotional),
	}

	for _, w := range rollingWindows {
		mean, std, trend := rollingStats(quantities, w)
		switch w {
		case 7:
			out.RollingMean7, out.RollingStd7, out.RollingTrend7 = mean, std, trend
		case 14:
			out.RollingMean14, out.RollingStd14, out.RollingTrend14 = mean, std, trend
		case 30:
			out.RollingMean30, out.RollingStd30, out.RollingTrend30 = mean, std, trend
		case 90:
			out.RollingMean90, out.RollingStd90, out.RollingTrend90 = mean, std, trend
		}
	}

	if b.category != nil {
		out.CategoryEncoded = b.category.Encode(row.Category)
	}

	if b.external != nil {
		if temp, precip, oil, ok := b.external.Lookup(d, row.StoreID); ok {
			out.TemperatureC, out.PrecipitationMM, out.OilPriceUSD = temp, precip, oil
		}
	}

	return out, nil
}

// BuildProduction extends BuildColdStart with the 19 production-tier
// columns supplied via ctx.
func (b *Builder) BuildProduction(history []contract.Row, idx int, ctx ProductionContext) (ProductionRow, error) {
	cs, err := b.BuildColdStart(history, idx)
	if err != nil {
		return ProductionRow{}, err
	}

	row := history[idx]
	priceVsCategoryAvg := 0.0
	if ctx.CategoryAvgPrice > 0 {
		priceVsCategoryAvg = (ctx.UnitPrice - ctx.CategoryAvgPrice) / ctx.CategoryAvgPrice
	}
	_ = row

	return ProductionRow{
		ColdStartRow: cs,

		UnitCost:          ctx.UnitCost,
		UnitPrice:         ctx.UnitPrice,
		Perishable:        boolToFloat(ctx.Perishable),
		ShelfLifeDays:     float64(ctx.ShelfLifeDays),
		HoldingCostPerDay: ctx.HoldingCostPerDay,

		StoreInventoryTurnover: ctx.StoreInventoryTurnover,
		StoreAvgDailySales:     ctx.StoreAvgDailySales,
		StoreClusterTier:       float64(ctx.StoreClusterTier),

		CurrentStock: float64(ctx.CurrentStock),
		OnOrder:      float64(ctx.OnOrder),
		Reserved:     float64(ctx.Reserved),
		Available:    float64(ctx.Available),
		DaysOfSupply: ctx.DaysOfSupply,

		PromoDepth:          ctx.PromoDepth,
		PromoDurationDays:   float64(ctx.PromoDurationDays),
		DaysSincePromoStart: float64(ctx.DaysSincePromoStart),
		DaysUntilPromoEnd:   float64(ctx.DaysUntilPromoEnd),
		IsHolidayPromo:      boolToFloat(ctx.IsHolidayPromo),
		PriceVsCategoryAvg:  priceVsCategoryAvg,
	}, nil
}

// OverrideTemporal replaces row's calendar-derived columns with the
// ones implied by forecastDate, leaving every rolling-history,
// category, promo, and external column untouched. This is how the
// forecast runtime projects a known feature row forward to a future
// day without fabricating observations for that day.
func OverrideTemporal(row ColdStartRow, forecastDate time.Time) ColdStartRow {
	row.DayOfWeek = float64(forecastDate.Weekday())
	row.DayOfMonth = float64(forecastDate.Day())
	row.DayOfYear = float64(forecastDate.YearDay())
	row.WeekOfYear = float64(isoWeek(forecastDate))
	row.Month = float64(forecastDate.Month())
	row.Quarter = float64((int(forecastDate.Month())-1)/3 + 1)
	row.Year = float64(forecastDate.Year())
	row.IsWeekend = boolToFloat(forecastDate.Weekday() == time.Saturday || forecastDate.Weekday() == time.Sunday)
	row.IsMonthStart = boolToFloat(forecastDate.Day() == 1)
	row.IsMonthEnd = boolToFloat(forecastDate.AddDate(0, 0, 1).Month() != forecastDate.Month())
	return row
}

// rollingStats computes the trailing mean, standard deviation, and
// linear-regression slope of series over the last min(window,
// len(series)) observations, using go-talib: compute the full
// indicator series and read its last value.
func rollingStats(series []float64, window int) (mean, std, trend float64) {
	n := len(series)
	if n == 0 {
		return 0, 0, 0
	}
	period := window
	if period > n {
		period = n
	}
	if period < 2 {
		return series[n-1], 0, 0
	}

	sma := talib.Sma(series, period)
	if last := sma[len(sma)-1]; !math.IsNaN(last) {
		mean = last
	}

	sd := talib.StdDev(series, period, 1)
	if last := sd[len(sd)-1]; !math.IsNaN(last) {
		std = last
	}

	slope := talib.LinearRegSlope(series, period)
	if last := slope[len(slope)-1]; !math.IsNaN(last) {
		trend = last
	}

	return mean, std, trend
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// isoWeek returns the ISO-8601 week number, matching the temporal
// feature set used by the reference forecasting literature (week
// seasonality in grocery demand).
func isoWeek(d time.Time) int {
	_, week := d.ISOWeek()
	return week
}
