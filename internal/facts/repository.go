// Package facts persists the canonical transaction and inventory
// records ingestion adapters produce and resolves a
// retailer's external store/product identifiers to internal ids, so
// every adapter kind (EDI, SFTP, event stream, POS) shares one
// concrete implementation of domain.TransactionWriter,
// domain.InventoryWriter and domain.StoreProductResolver instead of
// each growing its own.
package facts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
)

// Repository is the SQLite-backed TransactionWriter and
// InventoryWriter over the facts database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository constructs a Repository over the facts database.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db.Conn(), log: log.With().Str("component", "facts.repository").Logger()}
}

// WriteTransactions inserts records, skipping (not failing on) any row
// whose (tenant_id, external_id) already exists — the adapters' retry
// and re-poll windows overlap by design, so re-delivery is expected
// rather than exceptional.
func (r *Repository) WriteTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("facts: begin transactions write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions
			(id, tenant_id, store_id, product_id, ts, quantity, unit_price, total, discount_amount, type, external_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("facts: prepare transactions insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			uuid.New().String(), rec.TenantID.String(), rec.StoreID.String(), rec.ProductID.String(),
			rec.Timestamp.UTC().Format(time.RFC3339), rec.Quantity, rec.UnitPrice, rec.TotalAmount,
			rec.DiscountAmount, string(rec.TransactionType), rec.ExternalID, now,
		)
		if err != nil {
			return written, fmt.Errorf("facts: insert transaction %q: %w", rec.ExternalID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("facts: commit transactions write: %w", err)
	}
	return written, nil
}

// WriteInventory inserts one snapshot row per record. Unlike
// transactions, repeated snapshots at the same timestamp are a
// plausible re-poll rather than a duplicate-delivery bug, so every row
// is kept — forecast and replenishment reads always select the latest
// by ts rather than relying on uniqueness here.
func (r *Repository) WriteInventory(ctx context.Context, records []domain.InventoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("facts: begin inventory write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory_levels
			(id, tenant_id, store_id, product_id, ts, on_hand, on_order, reserved, available, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("facts: prepare inventory insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), rec.TenantID.String(), rec.StoreID.String(), rec.ProductID.String(),
			rec.Timestamp.UTC().Format(time.RFC3339), rec.QuantityOnHand, rec.QuantityAvailable,
			rec.Source, now,
		); err != nil {
			return 0, fmt.Errorf("facts: insert inventory: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return len(records), fmt.Errorf("facts: commit inventory write: %w", err)
	}
	return len(records), nil
}

var (
	_ domain.TransactionWriter = (*Repository)(nil)
	_ domain.InventoryWriter   = (*Repository)(nil)
)
