package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
)

// Record is one row of the tenant registry (component A, "Tenant
// context & store").
type Record struct {
	ID        uuid.UUID
	Name      string
	Status    string // active | suspended
	CreatedAt time.Time
}

// Store is the SQLite-backed tenant registry. It is the single
// source of truth scheduler.TenantLister and onboarding flows consult
// to discover which tenants exist and which are currently active.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore constructs a Store over db.
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db.Conn(), log: log.With().Str("component", "tenant.store").Logger()}
}

// Create registers a new tenant, minting its Handle.
func (s *Store) Create(name string) (Handle, error) {
	id := uuid.New()
	_, err := s.db.Exec(`INSERT INTO tenants (id, name, status, created_at) VALUES (?, ?, 'active', ?)`,
		id.String(), name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return Zero, fmt.Errorf("tenant store: create: %w", err)
	}
	return New(id, name), nil
}

// ListTenants implements scheduler.TenantLister: it returns every
// active tenant, the fan-out set for every cron tick.
func (s *Store) ListTenants(ctx context.Context) ([]Handle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tenants WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("tenant store: list: %w", err)
	}
	defer rows.Close()

	var out []Handle
	for rows.Next() {
		var idStr, name string
		if err := rows.Scan(&idStr, &name); err != nil {
			return nil, fmt.Errorf("tenant store: scan: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("tenant store: parse id: %w", err)
		}
		out = append(out, New(id, name))
	}
	return out, rows.Err()
}

// Suspend flips a tenant's status so it is excluded from future
// scheduler fan-out without deleting its historical rows.
func (s *Store) Suspend(h Handle) error {
	_, err := s.db.Exec(`UPDATE tenants SET status = 'suspended' WHERE id = ?`, h.ID().String())
	if err != nil {
		return fmt.Errorf("tenant store: suspend: %w", err)
	}
	return nil
}
