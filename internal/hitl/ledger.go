package hitl

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
)

// SQLLedger writes the audit-trail rows (po_decisions, actions) that
// accompany a HITL decision into the ledger database. Writes happen
// after the alerts-database transaction that created the decision has
// already committed, so SQLLedger never opens a transaction of its
// own — each row insert is independently best-effort.
type SQLLedger struct {
	db *sql.DB
}

// NewSQLLedger constructs a SQLLedger over ledgerDB.
func NewSQLLedger(ledgerDB *database.DB) *SQLLedger {
	return &SQLLedger{db: ledgerDB.Conn()}
}

var _ LedgerWriter = (*SQLLedger)(nil)

func (s *SQLLedger) LogDecision(decision domain.PODecision) error {
	alertID := ""
	if decision.AlertID != nil {
		alertID = decision.AlertID.String()
	}
	_, err := s.db.Exec(`
		INSERT INTO po_decisions
		(id, tenant_id, purchase_order_id, alert_id, reason, reason_code, original_quantity, final_quantity, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID.String(), decision.TenantID.String(), decision.PurchaseOrderID.String(), alertID,
		string(decision.Reason), decision.ReasonCode, decision.OriginalQuantity, decision.FinalQuantity,
		decision.Actor, decision.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("hitl: log po decision: %w", err)
	}
	return nil
}

func (s *SQLLedger) LogAction(action domain.Action) error {
	_, err := s.db.Exec(`
		INSERT INTO actions (id, tenant_id, alert_id, type, actor, reason_code, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID.String(), action.TenantID.String(), action.AlertID.String(), string(action.Type),
		action.Actor, action.ReasonCode, action.Notes, action.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("hitl: log action: %w", err)
	}
	return nil
}
