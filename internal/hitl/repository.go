package hitl

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// getAlertForUpdate reads an alert within tx so its status flip and
// the PO insert that follows commit together.
func getAlertForUpdate(tx *sql.Tx, tenantID, alertID uuid.UUID) (domain.Alert, bool, error) {
	row := tx.QueryRow(`
		SELECT store_id, product_id, type, severity, status, metadata, created_at, updated_at
		FROM alerts WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), alertID.String())

	var storeID, productID, alertType, severity, status, metadata, createdAt, updatedAt string
	err := row.Scan(&storeID, &productID, &alertType, &severity, &status, &metadata, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Alert{}, false, nil
	}
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("hitl: query alert: %w", err)
	}

	alert := domain.Alert{
		ID:       alertID,
		TenantID: tenantID,
		Type:     domain.AlertType(alertType),
		Severity: domain.AlertSeverity(severity),
		Status:   domain.AlertStatus(status),
	}
	alert.StoreID, err = uuid.Parse(storeID)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("hitl: parse alert store_id: %w", err)
	}
	alert.ProductID, err = uuid.Parse(productID)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("hitl: parse alert product_id: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &alert.Metadata); err != nil {
		return domain.Alert{}, false, fmt.Errorf("hitl: unmarshal alert metadata: %w", err)
	}
	alert.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("hitl: parse alert created_at: %w", err)
	}
	alert.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("hitl: parse alert updated_at: %w", err)
	}
	return alert, true, nil
}

func updateAlert(tx *sql.Tx, alert domain.Alert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("hitl: marshal alert metadata: %w", err)
	}
	_, err = tx.Exec(`UPDATE alerts SET status = ?, metadata = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		string(alert.Status), string(metadata), alert.UpdatedAt.Format(time.RFC3339),
		alert.TenantID.String(), alert.ID.String())
	if err != nil {
		return fmt.Errorf("hitl: update alert: %w", err)
	}
	return nil
}

func getPurchaseOrder(tx *sql.Tx, tenantID, poID uuid.UUID) (domain.PurchaseOrder, bool, error) {
	row := tx.QueryRow(`
		SELECT store_id, product_id, supplier_id, alert_id, quantity, unit_cost, source_type,
		       status, received_qty, created_at, updated_at
		FROM purchase_orders WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), poID.String())

	var storeID, productID, supplierID, alertID, sourceType, status, createdAt, updatedAt string
	var receivedQty sql.NullInt64
	var po domain.PurchaseOrder
	err := row.Scan(&storeID, &productID, &supplierID, &alertID, &po.Quantity, &po.UnitCost,
		&sourceType, &status, &receivedQty, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.PurchaseOrder{}, false, nil
	}
	if err != nil {
		return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: query purchase order: %w", err)
	}

	po.ID = poID
	po.TenantID = tenantID
	po.SourceType = domain.SourceType(sourceType)
	po.Status = domain.POStatus(status)
	if po.StoreID, err = uuid.Parse(storeID); err != nil {
		return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: parse po store_id: %w", err)
	}
	if po.ProductID, err = uuid.Parse(productID); err != nil {
		return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: parse po product_id: %w", err)
	}
	if supplierID != "" {
		if po.SupplierID, err = uuid.Parse(supplierID); err != nil {
			return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: parse po supplier_id: %w", err)
		}
	}
	if alertID != "" {
		id, err := uuid.Parse(alertID)
		if err != nil {
			return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: parse po alert_id: %w", err)
		}
		po.AlertID = &id
	}
	if receivedQty.Valid {
		qty := int(receivedQty.Int64)
		po.ReceivedQty = &qty
	}
	if po.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: parse po created_at: %w", err)
	}
	if po.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return domain.PurchaseOrder{}, false, fmt.Errorf("hitl: parse po updated_at: %w", err)
	}
	return po, true, nil
}

func insertPurchaseOrder(tx *sql.Tx, po domain.PurchaseOrder) error {
	alertID := ""
	if po.AlertID != nil {
		alertID = po.AlertID.String()
	}
	supplierID := ""
	if po.SupplierID != uuid.Nil {
		supplierID = po.SupplierID.String()
	}

	_, err := tx.Exec(`
		INSERT INTO purchase_orders
		(id, tenant_id, store_id, product_id, supplier_id, alert_id, quantity, unit_cost, source_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		po.ID.String(), po.TenantID.String(), po.StoreID.String(), po.ProductID.String(),
		supplierID, alertID, po.Quantity, po.UnitCost, string(po.SourceType), string(po.Status),
		po.CreatedAt.Format(time.RFC3339), po.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("hitl: insert purchase order: %w", err)
	}
	return nil
}
