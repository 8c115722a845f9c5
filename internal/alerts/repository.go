package alerts

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

// SQLRepository is the SQLite-backed Repository over the alerts
// table.
type SQLRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLRepository constructs a SQLRepository over db.
func NewSQLRepository(db *database.DB, log zerolog.Logger) *SQLRepository {
	return &SQLRepository{db: db.Conn(), log: log.With().Str("component", "alerts.repository").Logger()}
}

// ExistsOpen implements Repository.
func (r *SQLRepository) ExistsOpen(tenantID, storeID, productID uuid.UUID, alertType domain.AlertType) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE tenant_id = ? AND store_id = ? AND product_id = ? AND type = ? AND status IN (?, ?)`,
		tenantID.String(), storeID.String(), productID.String(), string(alertType),
		string(domain.AlertOpen), string(domain.AlertAcknowledged),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("alerts: dedup lookup: %w", err)
	}
	return count > 0, nil
}

// Create implements Repository.
func (r *SQLRepository) Create(alert domain.Alert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("alerts: marshal metadata: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO alerts (id, tenant_id, store_id, product_id, type, severity, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID.String(), alert.TenantID.String(), alert.StoreID.String(), alert.ProductID.String(),
		string(alert.Type), string(alert.Severity), string(alert.Status), string(metadata),
		alert.CreatedAt.Format(time.RFC3339), alert.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("alerts: insert: %w", err)
	}
	return nil
}

// Get returns a single alert by ID, used by the HITL decision engine.
func (r *SQLRepository) Get(tenantID, alertID uuid.UUID) (domain.Alert, bool, error) {
	row := r.db.QueryRow(`
		SELECT store_id, product_id, type, severity, status, metadata, created_at, updated_at
		FROM alerts WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), alertID.String())

	var storeID, productID, alertType, severity, status, metadata, createdAt, updatedAt string
	err := row.Scan(&storeID, &productID, &alertType, &severity, &status, &metadata, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Alert{}, false, nil
	}
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("alerts: query by id: %w", err)
	}

	return scanAlert(tenantID, alertID, storeID, productID, alertType, severity, status, metadata, createdAt, updatedAt)
}

// Update persists alert's mutable fields (status, metadata, updated_at).
func (r *SQLRepository) Update(alert domain.Alert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("alerts: marshal metadata: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE alerts SET status = ?, metadata = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		string(alert.Status), string(metadata), alert.UpdatedAt.Format(time.RFC3339),
		alert.TenantID.String(), alert.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("alerts: update: %w", err)
	}
	return nil
}

func scanAlert(tenantID, alertID uuid.UUID, storeID, productID, alertType, severity, status, metadata, createdAt, updatedAt string) (domain.Alert, bool, error) {
	alert := domain.Alert{
		ID:       alertID,
		TenantID: tenantID,
		Type:     domain.AlertType(alertType),
		Severity: domain.AlertSeverity(severity),
		Status:   domain.AlertStatus(status),
	}

	var err error
	alert.StoreID, err = uuid.Parse(storeID)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("alerts: parse store_id: %w", err)
	}
	alert.ProductID, err = uuid.Parse(productID)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("alerts: parse product_id: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &alert.Metadata); err != nil {
		return domain.Alert{}, false, fmt.Errorf("alerts: unmarshal metadata: %w", err)
	}
	alert.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("alerts: parse created_at: %w", err)
	}
	alert.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("alerts: parse updated_at: %w", err)
	}
	return alert, true, nil
}
