package facts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/tenant"
)

// Resolver implements domain.StoreProductResolver for one tenant,
// matching a retailer's external store code or SKU against the
// core database's stores.code and products.sku columns. Adapters call
// it with only the external id, so one Resolver is
// constructed per tenant at wiring time rather than shared.
type Resolver struct {
	db     *sql.DB
	tenant tenant.Handle
	log    zerolog.Logger
}

// NewResolver constructs a Resolver scoped to tenant th over the core
// database.
func NewResolver(db *database.DB, th tenant.Handle, log zerolog.Logger) *Resolver {
	return &Resolver{
		db:     db.Conn(),
		tenant: th,
		log:    log.With().Str("component", "facts.resolver").Str("tenant", th.String()).Logger(),
	}
}

// ResolveStore implements domain.StoreProductResolver.
func (r *Resolver) ResolveStore(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM stores WHERE tenant_id = ? AND code = ?`, r.tenant.ID().String(), externalID,
	).Scan(&idStr)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("facts: resolve store %q: %w", externalID, err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("facts: parse store id: %w", err)
	}
	return id, true, nil
}

// ResolveProduct implements domain.StoreProductResolver.
func (r *Resolver) ResolveProduct(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM products WHERE tenant_id = ? AND sku = ?`, r.tenant.ID().String(), externalID,
	).Scan(&idStr)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("facts: resolve product %q: %w", externalID, err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("facts: parse product id: %w", err)
	}
	return id, true, nil
}

var _ domain.StoreProductResolver = (*Resolver)(nil)
