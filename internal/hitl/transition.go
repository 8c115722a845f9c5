package hitl

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// transition moves an alert from one of fromStatuses into toStatus,
// stamping an audit Action, rejecting anything off that edge of the
// state machine as a StateMachineViolation.
func (e *Engine) transition(ctx context.Context, tenantID, alertID uuid.UUID, fromStatuses []domain.AlertStatus, toStatus domain.AlertStatus, actionType domain.ActionType, actor, reasonCode, notes string) error {
	var action domain.Action

	err := database.WithTransaction(e.db, func(tx *sql.Tx) error {
		alert, ok, err := getAlertForUpdate(tx, tenantID, alertID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.KindContractViolation, "hitl.transition", nil).WithResource(alertID.String())
		}
		if !statusAllowed(alert.Status, fromStatuses) {
			return apperr.New(apperr.KindStateMachineViolation, "hitl.transition", nil).WithResource(alertID.String())
		}

		now := time.Now().UTC()
		alert.Status = toStatus
		alert.UpdatedAt = now
		if err := updateAlert(tx, alert); err != nil {
			return err
		}

		action = domain.Action{
			ID:         uuid.New(),
			TenantID:   tenantID,
			AlertID:    alertID,
			Type:       actionType,
			Actor:      actor,
			ReasonCode: reasonCode,
			Notes:      notes,
			CreatedAt:  now,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hitl: transition: %w", err)
	}

	if err := e.ledger.LogAction(action); err != nil {
		e.log.Error().Err(err).Str("alert_id", alertID.String()).Msg("failed to log alert action")
	}
	return nil
}

func statusAllowed(status domain.AlertStatus, allowed []domain.AlertStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// Acknowledge moves an open alert to acknowledged.
func (e *Engine) Acknowledge(ctx context.Context, tenantID, alertID uuid.UUID, actor string) error {
	return e.transition(ctx, tenantID, alertID,
		[]domain.AlertStatus{domain.AlertOpen}, domain.AlertAcknowledged,
		domain.ActionAcknowledged, actor, "", "")
}

// Resolve moves an open or acknowledged alert to resolved without
// creating a purchase order. Use OrderFromAlert for the order path.
func (e *Engine) Resolve(ctx context.Context, tenantID, alertID uuid.UUID, actor, notes string) error {
	return e.transition(ctx, tenantID, alertID,
		[]domain.AlertStatus{domain.AlertOpen, domain.AlertAcknowledged}, domain.AlertResolved,
		domain.ActionResolved, actor, "", notes)
}

// Dismiss moves an open or acknowledged alert to dismissed.
func (e *Engine) Dismiss(ctx context.Context, tenantID, alertID uuid.UUID, actor, reasonCode, notes string) error {
	return e.transition(ctx, tenantID, alertID,
		[]domain.AlertStatus{domain.AlertOpen, domain.AlertAcknowledged}, domain.AlertDismissed,
		domain.ActionDismissed, actor, reasonCode, notes)
}
