package alerts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/sentinel/internal/database"
)

// InventorySnapshotReader implements StockoutInventory and
// ReorderInventory (identical method sets) over the facts database's
// latest inventory_levels row per pair. It does not consult product
// lifecycle; the reorder detector applies that gate separately through
// PlanogramMembership.
type InventorySnapshotReader struct {
	facts *sql.DB
	core  *sql.DB
}

// NewInventorySnapshotReader constructs an InventorySnapshotReader.
func NewInventorySnapshotReader(factsDB, coreDB *database.DB) *InventorySnapshotReader {
	return &InventorySnapshotReader{facts: factsDB.Conn(), core: coreDB.Conn()}
}

// ActivePairs returns every (store, product) pair with at least one
// inventory snapshot, whatever the product's lifecycle.
func (r *InventorySnapshotReader) ActivePairs(tenantID uuid.UUID) ([]Pair, error) {
	rows, err := r.facts.Query(`
		SELECT DISTINCT store_id, product_id FROM inventory_levels WHERE tenant_id = ?`,
		tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("alerts: active pairs: %w", err)
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var storeID, productID string
		if err := rows.Scan(&storeID, &productID); err != nil {
			return nil, fmt.Errorf("alerts: scan active pair: %w", err)
		}
		sID, err := uuid.Parse(storeID)
		if err != nil {
			return nil, err
		}
		pID, err := uuid.Parse(productID)
		if err != nil {
			return nil, err
		}
		out = append(out, Pair{StoreID: sID, ProductID: pID})
	}
	return out, rows.Err()
}

// Available returns the most recent shrinkage-adjusted available
// quantity for pair, or ok=false if no snapshot exists.
func (r *InventorySnapshotReader) Available(tenantID uuid.UUID, pair Pair) (float64, bool, error) {
	var available int
	err := r.facts.QueryRow(`
		SELECT available FROM inventory_levels
		WHERE tenant_id = ? AND store_id = ? AND product_id = ?
		ORDER BY ts DESC LIMIT 1`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(),
	).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("alerts: available: %w", err)
	}
	return float64(available), true, nil
}

// ForecastSumReader implements StockoutForecasts over the facts
// database's demand_forecasts table, summing the latest model
// version's forecasted_demand for the pair across the next N days
// from today.
type ForecastSumReader struct {
	db *sql.DB
}

// NewForecastSumReader constructs a ForecastSumReader.
func NewForecastSumReader(factsDB *database.DB) *ForecastSumReader {
	return &ForecastSumReader{db: factsDB.Conn()}
}

// SumNextDays implements StockoutForecasts.
func (r *ForecastSumReader) SumNextDays(tenantID uuid.UUID, pair Pair, days int) (float64, bool, error) {
	today := time.Now().UTC().Format("2006-01-02")
	until := time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")

	var sum sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT SUM(forecasted_demand) FROM demand_forecasts
		WHERE tenant_id = ? AND store_id = ? AND product_id = ?
		AND forecast_date >= ? AND forecast_date < ?
		AND model_version = (
			SELECT model_version FROM demand_forecasts
			WHERE tenant_id = ? AND store_id = ? AND product_id = ?
			ORDER BY created_at DESC LIMIT 1)`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(), today, until,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(),
	).Scan(&sum)
	if err != nil {
		return 0, false, fmt.Errorf("alerts: sum forecasts: %w", err)
	}
	if !sum.Valid {
		return 0, false, nil
	}
	return sum.Float64, true, nil
}

// ProductLifecycleGate implements PlanogramMembership. ShelfOps has no
// separate planogram-membership table: a store's planogram is
// represented by its planogram_id on the stores row, and the schema
// tracks per-product activity via products.lifecycle instead of a
// dedicated store/product planogram join. A product counts as
// planogram-active for a store when its lifecycle is "active" — every
// other lifecycle ("discontinued", "seasonal_out", ...) is excluded
// from reorder alerts regardless of store.
type ProductLifecycleGate struct {
	db *sql.DB
}

// NewProductLifecycleGate constructs a ProductLifecycleGate.
func NewProductLifecycleGate(coreDB *database.DB) *ProductLifecycleGate {
	return &ProductLifecycleGate{db: coreDB.Conn()}
}

// IsActive implements PlanogramMembership.
func (g *ProductLifecycleGate) IsActive(tenantID uuid.UUID, pair Pair) (bool, error) {
	var lifecycle string
	err := g.db.QueryRow(`SELECT lifecycle FROM products WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), pair.ProductID.String()).Scan(&lifecycle)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("alerts: product lifecycle: %w", err)
	}
	return lifecycle == "active", nil
}

// GhostStockReader implements GhostStockSource over facts (inventory,
// transactions, demand_forecasts) joined with core (products for unit
// price).
type GhostStockReader struct {
	facts *sql.DB
	core  *sql.DB
}

// NewGhostStockReader constructs a GhostStockReader.
func NewGhostStockReader(factsDB, coreDB *database.DB) *GhostStockReader {
	return &GhostStockReader{facts: factsDB.Conn(), core: coreDB.Conn()}
}

// Pairs implements GhostStockSource.
func (r *GhostStockReader) Pairs(tenantID uuid.UUID) ([]Pair, error) {
	return (&InventorySnapshotReader{facts: r.facts, core: r.core}).ActivePairs(tenantID)
}

// OnHand implements GhostStockSource.
func (r *GhostStockReader) OnHand(tenantID uuid.UUID, pair Pair) (float64, float64, bool, error) {
	var onHand int
	err := r.facts.QueryRow(`
		SELECT on_hand FROM inventory_levels
		WHERE tenant_id = ? AND store_id = ? AND product_id = ?
		ORDER BY ts DESC LIMIT 1`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(),
	).Scan(&onHand)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("alerts: ghost stock on hand: %w", err)
	}

	var unitPrice float64
	err = r.core.QueryRow(`SELECT unit_price FROM products WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), pair.ProductID.String()).Scan(&unitPrice)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, false, fmt.Errorf("alerts: ghost stock unit price: %w", err)
	}

	return float64(onHand), unitPrice, true, nil
}

// TrailingDays implements GhostStockSource, pairing each day's actual
// sales (summed from transactions) against that day's forecast.
func (r *GhostStockReader) TrailingDays(tenantID uuid.UUID, pair Pair, lookbackDays int) ([]DailyActualVsForecast, error) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	today := time.Now().UTC().Format("2006-01-02")

	actualByDay := make(map[string]float64)
	rows, err := r.facts.Query(`
		SELECT substr(ts, 1, 10) AS day, SUM(quantity) FROM transactions
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND ts >= ? AND type = 'sale'
		GROUP BY day`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(), since)
	if err != nil {
		return nil, fmt.Errorf("alerts: ghost stock actuals: %w", err)
	}
	for rows.Next() {
		var day string
		var qty float64
		if err := rows.Scan(&day, &qty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("alerts: scan actuals: %w", err)
		}
		actualByDay[day] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	forecastByDay := make(map[string]float64)
	rows, err = r.facts.Query(`
		SELECT forecast_date, forecasted_demand FROM demand_forecasts
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND forecast_date >= ? AND forecast_date < ?`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(), since, today)
	if err != nil {
		return nil, fmt.Errorf("alerts: ghost stock forecasts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var demand float64
		if err := rows.Scan(&day, &demand); err != nil {
			return nil, fmt.Errorf("alerts: scan forecasts: %w", err)
		}
		forecastByDay[day] = demand
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []DailyActualVsForecast
	for day, forecast := range forecastByDay {
		out = append(out, DailyActualVsForecast{Actual: actualByDay[day], Forecast: forecast})
	}
	return out, nil
}

// AnomalyFeatureReader implements AnomalyHistory by deriving a
// reduced feature snapshot directly from facts rows rather than a
// persisted feature store: each day's Sales7D/Trend7D/OnHand/Turnover
// are computed from transactions+inventory_levels, Price from core
// products, DayOfWeek from the calendar, Holiday fixed at 0 (no
// holiday calendar is stored), and
// PriceVsCategoryAvg against the category's mean price. ShelfOps does
// not persist per-day feature tier snapshots for every historical
// date (internal/features builds them on demand for forecasting, not
// for backfill), so the anomaly detector's history window is limited
// to whatever transactions/inventory history is retained.
type AnomalyFeatureReader struct {
	facts *sql.DB
	core  *sql.DB
}

// NewAnomalyFeatureReader constructs an AnomalyFeatureReader.
func NewAnomalyFeatureReader(factsDB, coreDB *database.DB) *AnomalyFeatureReader {
	return &AnomalyFeatureReader{facts: factsDB.Conn(), core: coreDB.Conn()}
}

// Pairs implements AnomalyHistory.
func (r *AnomalyFeatureReader) Pairs(tenantID uuid.UUID) ([]Pair, error) {
	return (&InventorySnapshotReader{facts: r.facts, core: r.core}).ActivePairs(tenantID)
}

// History implements AnomalyHistory, building one FeatureSnapshot per
// of the last 30 days plus the latest day to score.
func (r *AnomalyFeatureReader) History(tenantID uuid.UUID, pair Pair) ([]FeatureSnapshot, FeatureSnapshot, bool, error) {
	const lookbackDays = 30
	price, categoryAvg, err := r.priceContext(tenantID, pair)
	if err != nil {
		return nil, FeatureSnapshot{}, false, err
	}

	var history []FeatureSnapshot
	var latest FeatureSnapshot
	found := false
	for offset := lookbackDays; offset >= 0; offset-- {
		day := time.Now().UTC().AddDate(0, 0, -offset)
		snap, ok, err := r.snapshotFor(tenantID, pair, day, price, categoryAvg)
		if err != nil {
			return nil, FeatureSnapshot{}, false, err
		}
		if !ok {
			continue
		}
		if offset == 0 {
			latest = snap
			found = true
			continue
		}
		history = append(history, snap)
	}
	if !found || len(history) < MinAnomalyHistory {
		return nil, FeatureSnapshot{}, false, nil
	}
	return history, latest, true, nil
}

func (r *AnomalyFeatureReader) priceContext(tenantID uuid.UUID, pair Pair) (price, categoryAvg float64, err error) {
	var category string
	err = r.core.QueryRow(`SELECT unit_price, category FROM products WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), pair.ProductID.String()).Scan(&price, &category)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, fmt.Errorf("alerts: anomaly price context: %w", err)
	}
	if category == "" {
		return price, price, nil
	}
	var avg sql.NullFloat64
	if err := r.core.QueryRow(`SELECT AVG(unit_price) FROM products WHERE tenant_id = ? AND category = ?`,
		tenantID.String(), category).Scan(&avg); err != nil {
		return price, price, nil
	}
	if avg.Valid {
		categoryAvg = avg.Float64
	} else {
		categoryAvg = price
	}
	return price, categoryAvg, nil
}

func (r *AnomalyFeatureReader) snapshotFor(tenantID uuid.UUID, pair Pair, day time.Time, price, categoryAvg float64) (FeatureSnapshot, bool, error) {
	dayStr := day.Format("2006-01-02")

	var sales7D sql.NullFloat64
	if err := r.facts.QueryRow(`
		SELECT SUM(quantity) FROM transactions
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND type = 'sale'
		AND ts >= ? AND ts < ?`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(),
		day.AddDate(0, 0, -6).Format("2006-01-02"), day.AddDate(0, 0, 1).Format("2006-01-02"),
	).Scan(&sales7D); err != nil {
		return FeatureSnapshot{}, false, fmt.Errorf("alerts: anomaly sales7d: %w", err)
	}
	if !sales7D.Valid {
		return FeatureSnapshot{}, false, nil
	}

	var prior7D sql.NullFloat64
	_ = r.facts.QueryRow(`
		SELECT SUM(quantity) FROM transactions
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND type = 'sale'
		AND ts >= ? AND ts < ?`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(),
		day.AddDate(0, 0, -13).Format("2006-01-02"), day.AddDate(0, 0, -6).Format("2006-01-02"),
	).Scan(&prior7D)

	var onHand sql.NullInt64
	_ = r.facts.QueryRow(`
		SELECT on_hand FROM inventory_levels
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND ts < ?
		ORDER BY ts DESC LIMIT 1`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(), day.AddDate(0, 0, 1).Format("2006-01-02"),
	).Scan(&onHand)

	trend := 0.0
	if prior7D.Valid && prior7D.Float64 > 0 {
		trend = (sales7D.Float64 - prior7D.Float64) / prior7D.Float64
	}

	turnover := 0.0
	if onHand.Valid && onHand.Int64 > 0 {
		turnover = sales7D.Float64 / float64(onHand.Int64)
	}

	priceVsCategory := 0.0
	if categoryAvg > 0 {
		priceVsCategory = price / categoryAvg
	}

	holiday := 0.0

	return FeatureSnapshot{
		Sales7D:            sales7D.Float64,
		Trend7D:            trend,
		OnHand:             float64(onHand.Int64),
		Price:              price,
		DayOfWeek:          float64(day.Weekday()),
		Holiday:            holiday,
		Turnover:           turnover,
		PriceVsCategoryAvg: priceVsCategory,
	}, true, nil
}
