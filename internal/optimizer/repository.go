package optimizer

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SQLReorderRepository is the SQLite-backed ReorderRepository:
// current reorder points plus their append-only history log.
type SQLReorderRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLReorderRepository constructs a SQLReorderRepository over db.
func NewSQLReorderRepository(db *database.DB, log zerolog.Logger) *SQLReorderRepository {
	return &SQLReorderRepository{db: db.Conn(), log: log.With().Str("component", "optimizer.repository").Logger()}
}

// Get returns the current reorder point for (tenant, store, product),
// or (zero, false, nil) if none exists yet.
func (r *SQLReorderRepository) Get(tenantID, storeID, productID uuid.UUID) (domain.ReorderPoint, bool, error) {
	row := r.db.QueryRow(`
		SELECT id, rop, safety_stock, eoq, lead_time_days, service_level, source_type, updated_at
		FROM reorder_points WHERE tenant_id = ? AND store_id = ? AND product_id = ?`,
		tenantID.String(), storeID.String(), productID.String())

	var rp domain.ReorderPoint
	var id, sourceType, updatedAt string
	err := row.Scan(&id, &rp.ROP, &rp.SafetyStock, &rp.EOQ, &rp.LeadTimeDays, &rp.ServiceLevel, &sourceType, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.ReorderPoint{}, false, nil
	}
	if err != nil {
		return domain.ReorderPoint{}, false, fmt.Errorf("optimizer: query reorder point: %w", err)
	}

	rp.ID, err = uuid.Parse(id)
	if err != nil {
		return domain.ReorderPoint{}, false, fmt.Errorf("optimizer: parse reorder point id: %w", err)
	}
	rp.TenantID, rp.StoreID, rp.ProductID = tenantID, storeID, productID
	rp.SourceType = domain.SourceType(sourceType)
	rp.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return domain.ReorderPoint{}, false, fmt.Errorf("optimizer: parse reorder point updated_at: %w", err)
	}
	return rp, true, nil
}

// Upsert inserts or replaces the reorder point for (tenant, store,
// product), keyed on the table's UNIQUE constraint.
func (r *SQLReorderRepository) Upsert(rp domain.ReorderPoint) error {
	_, err := r.db.Exec(`
		INSERT INTO reorder_points
		(id, tenant_id, store_id, product_id, rop, safety_stock, eoq, lead_time_days, service_level, source_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, store_id, product_id) DO UPDATE SET
			rop = excluded.rop, safety_stock = excluded.safety_stock, eoq = excluded.eoq,
			lead_time_days = excluded.lead_time_days, service_level = excluded.service_level,
			source_type = excluded.source_type, updated_at = excluded.updated_at`,
		rp.ID.String(), rp.TenantID.String(), rp.StoreID.String(), rp.ProductID.String(),
		rp.ROP, rp.SafetyStock, rp.EOQ, rp.LeadTimeDays, rp.ServiceLevel, string(rp.SourceType),
		rp.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("optimizer: upsert reorder point: %w", err)
	}
	return nil
}

// LogHistory appends h to the reorder_history audit trail.
func (r *SQLReorderRepository) LogHistory(h domain.ReorderHistory) error {
	rationale, err := json.Marshal(h.Rationale)
	if err != nil {
		return fmt.Errorf("optimizer: marshal reorder rationale: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO reorder_history
		(id, tenant_id, store_id, product_id, old_rop, new_rop, old_safety_stock, new_safety_stock,
		 old_eoq, new_eoq, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.TenantID.String(), h.StoreID.String(), h.ProductID.String(),
		h.OldROP, h.NewROP, h.OldSafetyStock, h.NewSafetyStock, h.OldEOQ, h.NewEOQ,
		string(rationale), h.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("optimizer: insert reorder history: %w", err)
	}
	return nil
}
