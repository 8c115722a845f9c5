// Package domain holds the shared entity types and the narrow
// interfaces that break import cycles between components.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProductLifecycle enumerates the lifecycle states a Product can be in.
type ProductLifecycle string

const (
	LifecycleActive           ProductLifecycle = "active"
	LifecycleSeasonalOut      ProductLifecycle = "seasonal_out"
	LifecycleDelisted         ProductLifecycle = "delisted"
	LifecycleDiscontinued     ProductLifecycle = "discontinued"
	LifecycleTest             ProductLifecycle = "test"
	LifecyclePendingActivation ProductLifecycle = "pending_activation"
)

// TransactionType enumerates the kinds of point-of-sale/ERP events a
// Transaction row records.
type TransactionType string

const (
	TransactionSale       TransactionType = "sale"
	TransactionReturn     TransactionType = "return"
	TransactionVoid       TransactionType = "void"
	TransactionAdjustment TransactionType = "adjustment"
)

// Store is a tenant-owned physical or virtual selling location.
type Store struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Code        string
	Name        string
	Timezone    string
	PlanogramID string
	ClusterTier int // 0, 1 (default), 2 — feeds optimizer safety-stock cluster multiplier
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Supplier carries the reliability scorecard referenced by the
// optimizer and the alert engine's vendor_reliability_low detector.
type Supplier struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	OnTimeRate         float64 // 0..1
	LeadTimeMeanDays   float64
	LeadTimeVarianceDays float64
	DistanceKM         float64
	CostPerOrder       float64
	PaymentTermsDays   int
	MinimumOrderValue  float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Product is a tenant-owned sellable item.
type Product struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	SKU               string
	Name              string
	Category          string
	Lifecycle         ProductLifecycle
	Perishable        bool
	ShelfLifeDays      int
	UnitCost          float64
	UnitPrice         float64
	HoldingCostPerDay float64 // per unit per day; 0 means "derive as UnitCost*0.25/365 annualized" at optimizer time
	SupplierID        uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Transaction is an append-only POS/ERP event.
type Transaction struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	StoreID        uuid.UUID
	ProductID      uuid.UUID
	Timestamp      time.Time
	Quantity       int // signed, nonzero
	UnitPrice      float64
	Total          float64
	DiscountAmount float64
	Type           TransactionType
	ExternalID     string // idempotency key for re-sync; empty if not sourced externally
	CreatedAt      time.Time
}

// InventoryLevel is an append-only snapshot of stock state.
type InventoryLevel struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	StoreID          uuid.UUID
	ProductID        uuid.UUID
	Timestamp        time.Time
	OnHand           int // invariant: >= 0
	OnOrder          int
	Reserved         int
	Available        int
	Source           string
	CreatedAt        time.Time
}

// DemandForecast is a point prediction for a (store, product, date,
// model_version) key.
type DemandForecast struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	StoreID           uuid.UUID
	ProductID         uuid.UUID
	ForecastDate      time.Time
	ModelVersion      string
	ForecastedDemand  float64 // >= 0
	LowerBound        *float64
	UpperBound        *float64
	Confidence        *float64
	CreatedAt         time.Time
}

// ForecastAccuracy is the realized error for a settled forecast.
type ForecastAccuracy struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	StoreID      uuid.UUID
	ProductID    uuid.UUID
	ForecastDate time.Time
	ModelVersion string
	Actual       float64
	Forecasted   float64
	AbsError     float64
	PctError     float64
	CreatedAt    time.Time
}

// SourceType enumerates where replenishment stock is drawn from.
type SourceType string

const (
	SourceVendorDirect SourceType = "vendor_direct"
	SourceDC           SourceType = "dc"
	SourceRegionalDC   SourceType = "regional_dc"
	SourceTransfer     SourceType = "transfer"
)

// ReorderPoint is the optimizer's current output for a (store, product) pair.
type ReorderPoint struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	StoreID         uuid.UUID
	ProductID       uuid.UUID
	ROP             int
	SafetyStock     int
	EOQ             int
	LeadTimeDays    float64
	ServiceLevel    float64
	SourceType      SourceType
	UpdatedAt       time.Time
}

// ReorderHistory is the append-only log of every ReorderPoint mutation,
// carrying the calculation rationale for audit/debugging.
type ReorderHistory struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	StoreID         uuid.UUID
	ProductID       uuid.UUID
	OldROP          int
	NewROP          int
	OldSafetyStock  int
	NewSafetyStock  int
	OldEOQ          int
	NewEOQ          int
	Rationale       map[string]any
	CreatedAt       time.Time
}

// ProductSourcingRule maps a product (optionally scoped to a store) to
// a preferred source, ordered by Priority (1 highest .. 5 lowest).
type ProductSourcingRule struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	ProductID          uuid.UUID
	StoreID            *uuid.UUID // nil means "applies to all stores"
	Priority           int        // 1..5
	Source             SourceType
	LeadTimeMeanDays   float64
	LeadTimeVarianceDays float64
	MinOrderQty        int
	CostPerOrder       float64
}

// ModelStatus enumerates the model-arena lifecycle states.
type ModelStatus string

const (
	ModelCandidate  ModelStatus = "candidate"
	ModelChallenger ModelStatus = "challenger"
	ModelShadow     ModelStatus = "shadow"
	ModelChampion   ModelStatus = "champion"
	ModelArchived   ModelStatus = "archived"
)

// ModelMetrics is the metrics blob carried by a ModelVersion.
type ModelMetrics struct {
	MAE      float64
	MAPE     float64
	Coverage float64
}

// ModelVersion is a single entry in the versioned model registry.
type ModelVersion struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ModelName       string
	Version         string // <= 20 chars, monotonic per tenant
	Status          ModelStatus
	Metrics         ModelMetrics
	RoutingWeight   float64 // 0..1
	SmokeTestPassed bool
	FeatureTier     string
	CreatedAt       time.Time
	PromotedAt      *time.Time
	ArchivedAt      *time.Time
}

// BacktestResult is the walk-forward evaluation output for one
// (model, forecast_date) pair.
type BacktestResult struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ModelID           uuid.UUID
	ForecastDate      time.Time
	MAE               float64
	MAPE              float64
	StockoutMissRate  float64 // 0..1
	OverstockRate     float64 // 0..1
	CreatedAt         time.Time
}

// ShadowPrediction is a challenger prediction logged during shadow
// routing for later comparison against the champion's realized error.
type ShadowPrediction struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	StoreID      uuid.UUID
	ProductID    uuid.UUID
	ForecastDate time.Time
	ModelVersion string
	Predicted    float64
	CreatedAt    time.Time
}

// AlertType enumerates the alert-engine detector outputs.
type AlertType string

const (
	AlertStockoutPredicted    AlertType = "stockout_predicted"
	AlertReorderRecommended   AlertType = "reorder_recommended"
	AlertAnomalyDetected      AlertType = "anomaly_detected"
	AlertForecastAccuracyLow  AlertType = "forecast_accuracy_low"
	AlertModelDriftDetected   AlertType = "model_drift_detected"
	AlertDataStale            AlertType = "data_stale"
	AlertReceivingDiscrepancy AlertType = "receiving_discrepancy"
	AlertVendorReliabilityLow AlertType = "vendor_reliability_low"
	AlertReorderPointChanged  AlertType = "reorder_point_changed"
)

// AlertSeverity enumerates severity tiers, low to critical.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus enumerates the HITL state machine states for an Alert.
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertDismissed    AlertStatus = "dismissed"
)

// Alert is a detected condition requiring operator attention.
type Alert struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Type      AlertType
	Severity  AlertSeverity
	Status    AlertStatus
	Metadata  map[string]any // mutable; e.g. linked_po_id, suggested_qty, current_stock
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActionType enumerates the audit actions a user can perform on an alert.
type ActionType string

const (
	ActionAcknowledged ActionType = "acknowledged"
	ActionResolved     ActionType = "resolved"
	ActionDismissed    ActionType = "dismissed"
	ActionOrdered      ActionType = "ordered"
)

// Action is an append-only audit row recording a user interaction with
// an Alert.
type Action struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	AlertID   uuid.UUID
	Type      ActionType
	Actor     string
	ReasonCode string
	Notes     string
	CreatedAt time.Time
}

// POStatus enumerates the purchase-order status machine.
type POStatus string

const (
	POSuggested POStatus = "suggested"
	POApproved  POStatus = "approved"
	POOrdered   POStatus = "ordered"
	POShipped   POStatus = "shipped"
	POReceived  POStatus = "received"
	POCancelled POStatus = "cancelled"
)

// PurchaseOrder is a reorder action, possibly originating from an Alert.
type PurchaseOrder struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	StoreID     uuid.UUID
	ProductID   uuid.UUID
	SupplierID  uuid.UUID
	AlertID     *uuid.UUID
	Quantity    int // > 0
	UnitCost    float64
	SourceType  SourceType
	Status      POStatus
	ReceivedQty *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PODecisionReason enumerates how a purchase order was decided.
type PODecisionReason string

const (
	DecisionApproved PODecisionReason = "approved"
	DecisionRejected PODecisionReason = "rejected"
	DecisionEdited   PODecisionReason = "edited"
)

// PODecision is the reason-coded record of a human decision on a PO,
// captured for ML feedback on recommendation quality.
type PODecision struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	PurchaseOrderID  uuid.UUID
	AlertID          *uuid.UUID
	Reason           PODecisionReason
	ReasonCode       string
	OriginalQuantity int
	FinalQuantity    int
	Actor            string
	CreatedAt        time.Time
}

// ReceivingDiscrepancy is created when a received PO's quantity does
// not match what was ordered.
type ReceivingDiscrepancy struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	PurchaseOrderID uuid.UUID
	OrderedQty      int
	ReceivedQty     int
	CreatedAt       time.Time
}

// Anomaly is an auxiliary fact produced by the anomaly detector,
// carrying the feature vector and z-score that triggered it.
type Anomaly struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Metric    string
	ZScore    float64
	Features  map[string]float64
	CreatedAt time.Time
}

// ModelExperiment records a hyperparameter sweep and its winning config.
type ModelExperiment struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ModelName   string
	Grid        map[string]any
	WinningConfig map[string]any
	BestMAE     float64
	CreatedAt   time.Time
}

// RetrainTrigger enumerates why a retraining run was initiated.
type RetrainTrigger string

const (
	TriggerInitial   RetrainTrigger = "initial"
	TriggerScheduled RetrainTrigger = "scheduled"
	TriggerDrift     RetrainTrigger = "drift"
)

// ModelRetrainingLog records one retraining run's trigger, duration and
// row counts.
type ModelRetrainingLog struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ModelName    string
	Version      string
	Trigger      RetrainTrigger
	TrainingRows int
	Duration     time.Duration
	CreatedAt    time.Time
}

// OpportunityCostLog records the estimated lost margin from a stockout
// window, computed daily from resolved stockout_predicted alerts joined
// against the observed sales gap.
type OpportunityCostLog struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	StoreID     uuid.UUID
	ProductID   uuid.UUID
	Date        time.Time
	LostUnits   float64
	LostMargin  float64
	CreatedAt   time.Time
}

// SyncLogEntry is one adapter sync attempt, shared across EDI/SFTP/
// event/POS adapters; DocumentType is only set by the EDI adapter.
type SyncLogEntry struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	AdapterKind      string
	DocumentType     string // EDI-only: "846", "850", "856", "810"
	Status           string
	RecordsProcessed int
	RecordsFailed    int
	Errors           []string
	Metadata         map[string]any
	StartedAt        time.Time
	CompletedAt      time.Time
}
