package forecast

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/contract"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/features"
)

// SQLFeatureSource implements FeatureSource by aggregating the facts
// database's transaction history into daily per-pair quantities and
// joining the core database's product/store reference data for the
// production-tier context, following the same
// two-database-then-join-in-Go pattern as internal/alerts'
// facts_readers.go (SQLite has no cross-database JOIN across the
// six separate database files, which all tenants share).
type SQLFeatureSource struct {
	facts   *sql.DB
	core    *sql.DB
	builder *features.Builder
	log     zerolog.Logger
}

// NewSQLFeatureSource constructs a SQLFeatureSource over the facts and
// core databases, deriving feature rows via builder.
func NewSQLFeatureSource(factsDB, coreDB *database.DB, builder *features.Builder, log zerolog.Logger) *SQLFeatureSource {
	return &SQLFeatureSource{
		facts:   factsDB.Conn(),
		core:    coreDB.Conn(),
		builder: builder,
		log:     log.With().Str("component", "forecast.features_source").Logger(),
	}
}

// Pairs implements FeatureSource: every (store, product) with at
// least one recorded transaction for tenantID.
func (s *SQLFeatureSource) Pairs(tenantID uuid.UUID) ([]PairKey, error) {
	rows, err := s.facts.Query(
		`SELECT DISTINCT store_id, product_id FROM transactions WHERE tenant_id = ?`, tenantID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("forecast: list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []PairKey
	for rows.Next() {
		var storeStr, productStr string
		if err := rows.Scan(&storeStr, &productStr); err != nil {
			return nil, fmt.Errorf("forecast: scan pair: %w", err)
		}
		storeID, err := uuid.Parse(storeStr)
		if err != nil {
			continue
		}
		productID, err := uuid.Parse(productStr)
		if err != nil {
			continue
		}
		pairs = append(pairs, PairKey{StoreID: storeID, ProductID: productID})
	}
	return pairs, rows.Err()
}

// Category returns productID's category string, used by callers (the
// training pipeline) that need History's category argument without
// pulling in the full production context.
func (s *SQLFeatureSource) Category(tenantID, productID uuid.UUID) (string, error) {
	var category string
	err := s.core.QueryRow(
		`SELECT category FROM products WHERE tenant_id = ? AND id = ?`, tenantID.String(), productID.String(),
	).Scan(&category)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("forecast: category lookup for %s: %w", productID, err)
	}
	return category, nil
}

// History returns pair's daily net-quantity history on or before asOf,
// in ascending date order, as contract.Rows ready for
// features.Builder. Negative daily net quantity (return-heavy days)
// clips to zero, matching the contract's returns-adjustment split
// applied upstream of this read path.
func (s *SQLFeatureSource) History(tenantID uuid.UUID, pair PairKey, asOf time.Time, category string) ([]contract.Row, error) {
	rows, err := s.facts.Query(`
		SELECT date(ts) AS d, SUM(quantity) AS qty
		FROM transactions
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND date(ts) <= date(?)
		GROUP BY date(ts)
		ORDER BY date(ts) ASC`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(), asOf.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("forecast: history store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
	}
	defer rows.Close()

	var out []contract.Row
	for rows.Next() {
		var d string
		var qty float64
		if err := rows.Scan(&d, &qty); err != nil {
			return nil, fmt.Errorf("forecast: scan history row: %w", err)
		}
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if qty < 0 {
			qty = 0
		}
		out = append(out, contract.Row{
			Date:      date,
			StoreID:   pair.StoreID.String(),
			ProductID: pair.ProductID.String(),
			Quantity:  qty,
			Category:  category,
		})
	}
	return out, rows.Err()
}

// productionContext holds the joined core-database facts a pair's
// ProductionContext needs; it changes slowly (product attributes,
// store cluster tier) so it's resolved once per LatestRow call rather
// than per history row.
type productionContext struct {
	category    string
	unitCost    float64
	unitPrice   float64
	perishable  bool
	shelfLife   int
	holdingCost float64
	clusterTier int
}

func (s *SQLFeatureSource) lookupContext(tenantID, storeID, productID uuid.UUID) (productionContext, error) {
	var ctx productionContext
	err := s.core.QueryRow(`
		SELECT category, unit_cost, unit_price, perishable, shelf_life_days, holding_cost_per_day
		FROM products WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), productID.String(),
	).Scan(&ctx.category, &ctx.unitCost, &ctx.unitPrice, &ctx.perishable, &ctx.shelfLife, &ctx.holdingCost)
	if err != nil && err != sql.ErrNoRows {
		return ctx, fmt.Errorf("forecast: lookup product %s: %w", productID, err)
	}

	ctx.clusterTier = 1
	_ = s.core.QueryRow(
		`SELECT cluster_tier FROM stores WHERE tenant_id = ? AND id = ?`, tenantID.String(), storeID.String(),
	).Scan(&ctx.clusterTier)

	return ctx, nil
}

func (s *SQLFeatureSource) latestInventory(tenantID uuid.UUID, pair PairKey, asOf time.Time) (onHand, onOrder, reserved, available float64) {
	_ = s.facts.QueryRow(`
		SELECT on_hand, on_order, reserved, available FROM inventory_levels
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND date(ts) <= date(?)
		ORDER BY ts DESC LIMIT 1`,
		tenantID.String(), pair.StoreID.String(), pair.ProductID.String(), asOf.Format("2006-01-02"),
	).Scan(&onHand, &onOrder, &reserved, &available)
	return
}

// LatestRow implements FeatureSource.
func (s *SQLFeatureSource) LatestRow(tenantID uuid.UUID, pair PairKey, asOf time.Time) (features.ProductionRow, bool, error) {
	ctx, err := s.lookupContext(tenantID, pair.StoreID, pair.ProductID)
	if err != nil {
		return features.ProductionRow{}, false, err
	}

	history, err := s.History(tenantID, pair, asOf, ctx.category)
	if err != nil {
		return features.ProductionRow{}, false, err
	}
	if len(history) == 0 {
		return features.ProductionRow{}, false, nil
	}

	onHand, onOrder, reserved, available := s.latestInventory(tenantID, pair, asOf)
	daysOfSupply := 0.0
	if avg := averageDaily(history); avg > 0 {
		daysOfSupply = available / avg
	}

	row, err := s.builder.BuildProduction(history, len(history)-1, features.ProductionContext{
		UnitCost:          ctx.unitCost,
		UnitPrice:         ctx.unitPrice,
		Perishable:        ctx.perishable,
		ShelfLifeDays:     ctx.shelfLife,
		HoldingCostPerDay: ctx.holdingCost,
		StoreClusterTier:  ctx.clusterTier,
		CurrentStock:      int(onHand),
		OnOrder:           int(onOrder),
		Reserved:          int(reserved),
		Available:         int(available),
		DaysOfSupply:      daysOfSupply,
	})
	if err != nil {
		return features.ProductionRow{}, false, err
	}
	return row, true, nil
}

func averageDaily(history []contract.Row) float64 {
	if len(history) == 0 {
		return 0
	}
	var total float64
	for _, r := range history {
		total += r.Quantity
	}
	return total / float64(len(history))
}

var _ FeatureSource = (*SQLFeatureSource)(nil)
