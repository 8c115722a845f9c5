// Package ingestion declares the capability set every source adapter
// implements and the sync-log bookkeeping shared across adapter kinds.
package ingestion

import (
	"context"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/tenant"
)

// Kind tags which adapter variant an Adapter is; NewLogEntry records it
// as a sync-log entry's AdapterKind.
type Kind string

const (
	KindEDI   Kind = "edi"
	KindSFTP  Kind = "sftp"
	KindEvent Kind = "event"
	KindPOS   Kind = "pos"
)

// Adapter is the capability set every source integration implements,
// regardless of transport.
type Adapter interface {
	Kind() Kind
	TestConnection(ctx context.Context) error
	SyncStores(ctx context.Context, t tenant.Handle) (domain.SyncResult, error)
	SyncProducts(ctx context.Context, t tenant.Handle) (domain.SyncResult, error)
	SyncTransactions(ctx context.Context, t tenant.Handle, since time.Time) (domain.SyncResult, error)
	SyncInventory(ctx context.Context, t tenant.Handle) (domain.SyncResult, error)
}

// LogEntryWriter persists one SyncLogEntry per adapter invocation,
// regardless of which of the four sync methods ran.
type LogEntryWriter interface {
	WriteSyncLog(ctx context.Context, t tenant.Handle, entry domain.SyncLogEntry) error
}

// NewLogEntry builds a domain.SyncLogEntry from a completed SyncResult,
// the common bookkeeping step every adapter performs after a sync call.
func NewLogEntry(kind Kind, syncType string, result domain.SyncResult) domain.SyncLogEntry {
	return domain.SyncLogEntry{
		AdapterKind:      string(kind),
		DocumentType:     syncType,
		Status:           string(result.Status),
		RecordsProcessed: result.RecordsProcessed,
		RecordsFailed:    result.RecordsFailed,
		Errors:           result.Errors,
		Metadata:         result.Metadata,
		StartedAt:        result.StartedAt,
		CompletedAt:      result.CompletedAt,
	}
}
