package hitl

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHitlDB(t *testing.T) *database.DB {
	t.Helper()
	f, err := os.CreateTemp("", "shelfops-hitl-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(path) })

	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "alerts"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec(`
		CREATE TABLE alerts (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			type TEXT NOT NULL, severity TEXT NOT NULL, status TEXT NOT NULL, metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL, updated_at TEXT NOT NULL
		);
		CREATE TABLE purchase_orders (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, store_id TEXT NOT NULL, product_id TEXT NOT NULL,
			supplier_id TEXT NOT NULL DEFAULT '', alert_id TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL CHECK (quantity > 0), unit_cost REAL NOT NULL DEFAULT 0,
			source_type TEXT NOT NULL, status TEXT NOT NULL, received_qty INTEGER,
			created_at TEXT NOT NULL, updated_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err)
	return db
}

type fakeLedger struct {
	decisions []domain.PODecision
	actions   []domain.Action
}

func (f *fakeLedger) LogDecision(decision domain.PODecision) error {
	f.decisions = append(f.decisions, decision)
	return nil
}

func (f *fakeLedger) LogAction(action domain.Action) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeEnginePublisher struct{ published []any }

func (f *fakeEnginePublisher) Publish(ctx context.Context, tenantID uuid.UUID, event any) {
	f.published = append(f.published, event)
}

func newReorderAlert(tenant, store, product uuid.UUID, status domain.AlertStatus, metadata map[string]any) domain.Alert {
	now := time.Now().UTC()
	return domain.Alert{
		ID: uuid.New(), TenantID: tenant, StoreID: store, ProductID: product,
		Type: domain.AlertReorderRecommended, Severity: domain.SeverityMedium, Status: status,
		Metadata: metadata, CreatedAt: now, UpdatedAt: now,
	}
}

func insertAlertRow(t *testing.T, db *database.DB, alert domain.Alert) {
	t.Helper()
	metadata := "{}"
	if alert.Metadata != nil {
		b, err := json.Marshal(alert.Metadata)
		require.NoError(t, err)
		metadata = string(b)
	}
	_, err := db.Conn().Exec(`
		INSERT INTO alerts (id, tenant_id, store_id, product_id, type, severity, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID.String(), alert.TenantID.String(), alert.StoreID.String(), alert.ProductID.String(),
		string(alert.Type), string(alert.Severity), string(alert.Status), metadata,
		alert.CreatedAt.Format(time.RFC3339), alert.UpdatedAt.Format(time.RFC3339))
	require.NoError(t, err)
}

func TestEngine_OrderFromAlert_HappyPathCreatesPOAndResolvesAlert(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertOpen, map[string]any{"suggested_qty": 40.0})
	insertAlertRow(t, db, alert)

	ledger := &fakeLedger{}
	publisher := &fakeEnginePublisher{}
	engine := NewEngine(db, ledger, publisher, zerolog.Nop())

	po, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Actor: "tester"})
	require.NoError(t, err)
	assert.Equal(t, 40, po.Quantity)
	assert.Equal(t, domain.POApproved, po.Status)
	assert.Len(t, ledger.decisions, 1)
	assert.Equal(t, domain.DecisionApproved, ledger.decisions[0].Reason)
	assert.Len(t, ledger.actions, 1)
	assert.Len(t, publisher.published, 1)

	reloaded, ok, err := getAlertForUpdateDirect(db, tenant, alert.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.AlertResolved, reloaded.Status)
	assert.Equal(t, po.ID.String(), reloaded.Metadata["linked_po_id"])
}

func TestEngine_OrderFromAlert_IsIdempotentOnSecondCall(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertOpen, map[string]any{"suggested_qty": 25.0})
	insertAlertRow(t, db, alert)

	ledger := &fakeLedger{}
	publisher := &fakeEnginePublisher{}
	engine := NewEngine(db, ledger, publisher, zerolog.Nop())

	first, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Actor: "tester"})
	require.NoError(t, err)

	second, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Actor: "tester"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// the second call must not append a new decision/action or publish again
	assert.Len(t, ledger.decisions, 1)
	assert.Len(t, ledger.actions, 1)
	assert.Len(t, publisher.published, 1)
}

func TestEngine_OrderFromAlert_OverrideWithoutReasonCodeIsRejected(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertOpen, map[string]any{"suggested_qty": 40.0})
	insertAlertRow(t, db, alert)

	engine := NewEngine(db, &fakeLedger{}, &fakeEnginePublisher{}, zerolog.Nop())
	_, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Quantity: 75, Actor: "tester"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindContractViolation))
}

func TestEngine_OrderFromAlert_OverrideWithReasonCodeSucceedsAndRecordsEdited(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertOpen, map[string]any{"suggested_qty": 40.0})
	insertAlertRow(t, db, alert)

	ledger := &fakeLedger{}
	engine := NewEngine(db, ledger, &fakeEnginePublisher{}, zerolog.Nop())
	po, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Quantity: 75, ReasonCode: "vendor_minimum", Actor: "tester"})
	require.NoError(t, err)
	assert.Equal(t, 75, po.Quantity)
	require.Len(t, ledger.decisions, 1)
	assert.Equal(t, domain.DecisionEdited, ledger.decisions[0].Reason)
	assert.Equal(t, 40, ledger.decisions[0].OriginalQuantity)
}

func TestEngine_OrderFromAlert_RejectsWrongAlertType(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	alert := domain.Alert{
		ID: uuid.New(), TenantID: tenant, StoreID: store, ProductID: product,
		Type: domain.AlertStockoutPredicted, Severity: domain.SeverityHigh, Status: domain.AlertOpen,
		Metadata: map[string]any{}, CreatedAt: now, UpdatedAt: now,
	}
	insertAlertRow(t, db, alert)

	engine := NewEngine(db, &fakeLedger{}, &fakeEnginePublisher{}, zerolog.Nop())
	_, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Actor: "tester"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateMachineViolation))
}

func TestEngine_OrderFromAlert_RejectsAlreadyDismissedAlert(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertDismissed, map[string]any{"suggested_qty": 10.0})
	insertAlertRow(t, db, alert)

	engine := NewEngine(db, &fakeLedger{}, &fakeEnginePublisher{}, zerolog.Nop())
	_, err := engine.OrderFromAlert(context.Background(), tenant, alert.ID, OrderRequest{Actor: "tester"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateMachineViolation))
}

func TestEngine_Acknowledge_MovesOpenToAcknowledged(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertOpen, map[string]any{})
	insertAlertRow(t, db, alert)

	ledger := &fakeLedger{}
	engine := NewEngine(db, ledger, &fakeEnginePublisher{}, zerolog.Nop())
	require.NoError(t, engine.Acknowledge(context.Background(), tenant, alert.ID, "tester"))

	reloaded, ok, err := getAlertForUpdateDirect(db, tenant, alert.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.AlertAcknowledged, reloaded.Status)
	require.Len(t, ledger.actions, 1)
	assert.Equal(t, domain.ActionAcknowledged, ledger.actions[0].Type)
}

func TestEngine_Dismiss_RejectsAlreadyResolvedAlert(t *testing.T) {
	db := setupHitlDB(t)
	tenant, store, product := uuid.New(), uuid.New(), uuid.New()
	alert := newReorderAlert(tenant, store, product, domain.AlertResolved, map[string]any{})
	insertAlertRow(t, db, alert)

	engine := NewEngine(db, &fakeLedger{}, &fakeEnginePublisher{}, zerolog.Nop())
	err := engine.Dismiss(context.Background(), tenant, alert.ID, "tester", "not_relevant", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateMachineViolation))
}

func getAlertForUpdateDirect(db *database.DB, tenantID, alertID uuid.UUID) (domain.Alert, bool, error) {
	tx, err := db.Conn().Begin()
	if err != nil {
		return domain.Alert{}, false, err
	}
	defer tx.Rollback()
	alert, ok, err := getAlertForUpdate(tx, tenantID, alertID)
	if err != nil {
		return domain.Alert{}, false, err
	}
	return alert, ok, nil
}
