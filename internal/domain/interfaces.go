package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SyncStatus enumerates the possible outcomes of an adapter sync call.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
	SyncNoData  SyncStatus = "no_data"
)

// SyncResult is the standard outcome object returned by every adapter
// sync call.
type SyncResult struct {
	Status           SyncStatus
	RecordsProcessed int
	RecordsFailed    int
	Errors           []string
	Metadata         map[string]any
	StartedAt        time.Time
	CompletedAt      time.Time
}

// Complete stamps CompletedAt and derives a final Status from the
// accumulated record counts, across all four adapter kinds. Any failed
// record decides the Status (failed or partial); a Status the caller
// already set is kept only when no record failed.
func (r *SyncResult) Complete() SyncResult {
	r.CompletedAt = time.Now().UTC()
	if r.RecordsFailed > 0 && r.RecordsProcessed == 0 {
		r.Status = SyncFailed
	} else if r.RecordsFailed > 0 {
		r.Status = SyncPartial
	} else if r.RecordsProcessed == 0 && r.Status == "" {
		r.Status = SyncNoData
	} else if r.Status == "" {
		r.Status = SyncSuccess
	}
	return *r
}

// NewSyncResult starts a result with StartedAt stamped to now.
func NewSyncResult() *SyncResult {
	return &SyncResult{
		Metadata:  make(map[string]any),
		StartedAt: time.Now().UTC(),
	}
}

// TransactionRecord is the canonical wire shape for a single POS/ERP
// transaction event.
type TransactionRecord struct {
	TenantID        uuid.UUID
	ExternalID      string
	StoreID         uuid.UUID
	ProductID       uuid.UUID
	Timestamp       time.Time
	Quantity        int
	UnitPrice       float64
	TotalAmount     float64
	DiscountAmount  float64
	TransactionType TransactionType
}

// InventoryRecord is the canonical wire shape for a single inventory
// snapshot event.
type InventoryRecord struct {
	TenantID          uuid.UUID
	StoreID           uuid.UUID
	ProductID         uuid.UUID
	Timestamp         time.Time
	QuantityOnHand    int
	QuantityAvailable int
	Source            string
}

// TransactionWriter persists canonical transaction records idempotently
// on ExternalID. Adapters depend only on this narrow interface rather
// than the concrete repository, avoiding a circular dependency between
// ingestion and facts storage.
type TransactionWriter interface {
	WriteTransactions(ctx context.Context, records []TransactionRecord) (written int, err error)
}

// InventoryWriter persists canonical inventory snapshot records.
type InventoryWriter interface {
	WriteInventory(ctx context.Context, records []InventoryRecord) (written int, err error)
}

// StoreProductResolver resolves a retailer's external location/catalog
// identifiers to internal store/product IDs, used by adapters whose
// upstream system has its own ID space (POS, EDI warehouse codes).
type StoreProductResolver interface {
	ResolveStore(ctx context.Context, externalID string) (uuid.UUID, bool, error)
	ResolveProduct(ctx context.Context, externalID string) (uuid.UUID, bool, error)
}

// EventPublisher broadcasts a typed event to interested subscribers
// at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, tenantID uuid.UUID, event any)
}
