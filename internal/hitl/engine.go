// Package hitl implements the human-in-the-loop decision engine: the
// Alert state machine and the idempotent order-from-alert action
// conversion.
package hitl

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerWriter appends the audit-trail rows that accompany an
// order-from-alert decision. These live in the separate ledger
// database and are written
// best-effort after the primary alerts-database transaction commits —
// only the PO-creation/alert-flip pair is transactionally atomic, since
// that is the only pair idempotency guarantee actually
// depends on ("exactly one PO is created per alert").
type LedgerWriter interface {
	LogDecision(decision domain.PODecision) error
	LogAction(action domain.Action) error
}

// OrderRequest is the caller-supplied payload for OrderFromAlert.
type OrderRequest struct {
	Quantity   int // 0 means "use the alert's suggested quantity"
	ReasonCode string
	Actor      string
}

// Engine implements the HITL decision engine over the alerts database
// (which carries both the alerts and purchase_orders tables, letting
// OrderFromAlert flip the alert and create the PO in one transaction).
type Engine struct {
	db        *sql.DB
	ledger    LedgerWriter
	publisher domain.EventPublisher
	log       zerolog.Logger
}

// NewEngine constructs an Engine over alertsDB.
func NewEngine(alertsDB *database.DB, ledger LedgerWriter, publisher domain.EventPublisher, log zerolog.Logger) *Engine {
	return &Engine{
		db:        alertsDB.Conn(),
		ledger:    ledger,
		publisher: publisher,
		log:       log.With().Str("component", "hitl.engine").Logger(),
	}
}

// OrderFromAlert converts a reorder_recommended alert into a
// PurchaseOrder, idempotently.
func (e *Engine) OrderFromAlert(ctx context.Context, tenantID, alertID uuid.UUID, req OrderRequest) (domain.PurchaseOrder, error) {
	var (
		po          domain.PurchaseOrder
		decision    domain.PODecision
		action      domain.Action
		freshlyMade bool
	)

	err := database.WithTransaction(e.db, func(tx *sql.Tx) error {
		alert, ok, err := getAlertForUpdate(tx, tenantID, alertID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.KindContractViolation, "hitl.OrderFromAlert", nil).WithResource(alertID.String())
		}
		if alert.Type != domain.AlertReorderRecommended {
			return apperr.New(apperr.KindStateMachineViolation, "hitl.OrderFromAlert", nil).WithResource(alertID.String())
		}

		if alert.Status == domain.AlertResolved {
			if linkedID, ok := linkedPOID(alert); ok {
				existing, found, err := getPurchaseOrder(tx, tenantID, linkedID)
				if err != nil {
					return err
				}
				if found {
					po = existing
					return nil
				}
			}
		}

		if alert.Status != domain.AlertOpen && alert.Status != domain.AlertAcknowledged {
			return apperr.New(apperr.KindStateMachineViolation, "hitl.OrderFromAlert", nil).WithResource(alertID.String())
		}

		suggestedQty, _ := metadataInt(alert.Metadata, "suggested_qty")
		quantity := req.Quantity
		reason := domain.DecisionApproved
		if quantity == 0 {
			quantity = suggestedQty
		} else if quantity != suggestedQty {
			reason = domain.DecisionEdited
			if req.ReasonCode == "" {
				return apperr.New(apperr.KindContractViolation, "hitl.OrderFromAlert", nil).WithResource(alertID.String())
			}
		}
		if quantity <= 0 {
			return apperr.New(apperr.KindContractViolation, "hitl.OrderFromAlert", nil).WithResource(alertID.String())
		}

		supplierID, _ := metadataUUID(alert.Metadata, "supplier_id")
		sourceType, _ := alert.Metadata["source_type"].(string)
		if sourceType == "" {
			sourceType = string(domain.SourceDC)
		}

		now := time.Now().UTC()
		po = domain.PurchaseOrder{
			ID:         uuid.New(),
			TenantID:   tenantID,
			StoreID:    alert.StoreID,
			ProductID:  alert.ProductID,
			SupplierID: supplierID,
			AlertID:    &alertID,
			Quantity:   quantity,
			SourceType: domain.SourceType(sourceType),
			Status:     domain.POApproved,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := insertPurchaseOrder(tx, po); err != nil {
			return err
		}

		if alert.Metadata == nil {
			alert.Metadata = map[string]any{}
		}
		alert.Metadata["linked_po_id"] = po.ID.String()
		alert.Status = domain.AlertResolved
		alert.UpdatedAt = now
		if err := updateAlert(tx, alert); err != nil {
			return err
		}

		decision = domain.PODecision{
			ID:               uuid.New(),
			TenantID:         tenantID,
			PurchaseOrderID:  po.ID,
			AlertID:          &alertID,
			Reason:           reason,
			ReasonCode:       req.ReasonCode,
			OriginalQuantity: suggestedQty,
			FinalQuantity:    quantity,
			Actor:            req.Actor,
			CreatedAt:        now,
		}
		action = domain.Action{
			ID:         uuid.New(),
			TenantID:   tenantID,
			AlertID:    alertID,
			Type:       domain.ActionOrdered,
			Actor:      req.Actor,
			ReasonCode: req.ReasonCode,
			CreatedAt:  now,
		}
		freshlyMade = true
		return nil
	})
	if err != nil {
		return domain.PurchaseOrder{}, fmt.Errorf("hitl: order from alert: %w", err)
	}

	if !freshlyMade {
		return po, nil
	}

	if err := e.ledger.LogDecision(decision); err != nil {
		e.log.Error().Err(err).Str("purchase_order_id", po.ID.String()).Msg("failed to log PO decision")
	}
	if err := e.ledger.LogAction(action); err != nil {
		e.log.Error().Err(err).Str("alert_id", alertID.String()).Msg("failed to log alert action")
	}

	e.publisher.Publish(ctx, tenantID, &events.POCreatedData{
		PurchaseOrderID: po.ID.String(),
		AlertID:         alertID.String(),
		Quantity:        po.Quantity,
	})

	return po, nil
}

func linkedPOID(alert domain.Alert) (uuid.UUID, bool) {
	raw, ok := alert.Metadata["linked_po_id"]
	if !ok {
		return uuid.UUID{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func metadataInt(metadata map[string]any, key string) (int, bool) {
	raw, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func metadataUUID(metadata map[string]any, key string) (uuid.UUID, bool) {
	raw, ok := metadata[key]
	if !ok {
		return uuid.UUID{}, false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}
