package optimizer

import (
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel/internal/database"
	"github.com/google/uuid"
)

// SQLStoreClusters implements StoreClusters over the stores table.
type SQLStoreClusters struct{ db *sql.DB }

// NewSQLStoreClusters constructs a SQLStoreClusters over db.
func NewSQLStoreClusters(db *database.DB) *SQLStoreClusters { return &SQLStoreClusters{db: db.Conn()} }

// ClusterTier returns storeID's cluster tier, defaulting to tier 1
// (the neutral multiplier) when the store row is missing a tier.
func (c *SQLStoreClusters) ClusterTier(tenantID, storeID uuid.UUID) (int, error) {
	var tier int
	err := c.db.QueryRow(`SELECT cluster_tier FROM stores WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), storeID.String()).Scan(&tier)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("optimizer: query store cluster tier: %w", err)
	}
	return tier, nil
}

// SQLProducts implements Products over the products table.
type SQLProducts struct{ db *sql.DB }

// NewSQLProducts constructs a SQLProducts over db.
func NewSQLProducts(db *database.DB) *SQLProducts { return &SQLProducts{db: db.Conn()} }

// Economics returns productID's unit cost and per-day holding cost.
func (p *SQLProducts) Economics(tenantID, productID uuid.UUID) (float64, float64, error) {
	var unitCost, holdingCostPerDay float64
	err := p.db.QueryRow(`SELECT unit_cost, holding_cost_per_day FROM products WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), productID.String()).Scan(&unitCost, &holdingCostPerDay)
	if err != nil {
		return 0, 0, fmt.Errorf("optimizer: query product economics: %w", err)
	}
	return unitCost, holdingCostPerDay, nil
}
