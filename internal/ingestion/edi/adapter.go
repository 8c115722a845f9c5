package edi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/ingestion"
	"github.com/aristath/sentinel/internal/tenant"
	"github.com/rs/zerolog"
)

// Config points the adapter at its inbound/archive directories.
type Config struct {
	InputDir   string
	ArchiveDir string
	PartnerID  string
}

// Adapter implements ingestion.Adapter for EDI X12 trading-partner
// exchanges. Classification of inbound files is always
// content-based: the ST segment, never the filename.
type Adapter struct {
	cfg      Config
	products ingestion.LogEntryWriter
	writer   domain.TransactionWriter
	invWriter domain.InventoryWriter
	resolver domain.StoreProductResolver
	log      zerolog.Logger
}

// New builds an EDI adapter. writer/invWriter/resolver may be nil for
// read-only/demo use; resolver is required to translate GTIN/warehouse
// identifiers into tenant store/product ids.
func New(cfg Config, writer domain.TransactionWriter, invWriter domain.InventoryWriter, resolver domain.StoreProductResolver, log zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		writer:    writer,
		invWriter: invWriter,
		resolver:  resolver,
		log:       log.With().Str("adapter", "edi").Str("partner", cfg.PartnerID).Logger(),
	}
}

func (a *Adapter) Kind() ingestion.Kind { return ingestion.KindEDI }

// TestConnection verifies the inbound directory is reachable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	info, err := os.Stat(a.cfg.InputDir)
	if err != nil {
		return fmt.Errorf("edi input dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("edi input dir %q is not a directory", a.cfg.InputDir)
	}
	return nil
}

// SyncStores has no EDI analog; stores are loaded by the SFTP adapter
// or manual configuration.
func (a *Adapter) SyncStores(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	a.log.Info().Msg("sync_stores: EDI carries no store master data")
	result := domain.NewSyncResult()
	result.Status = domain.SyncNoData
	return result.Complete(), nil
}

// SyncProducts extracts unique GTIN/UPC identifiers from 846 documents.
func (a *Adapter) SyncProducts(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	result := domain.NewSyncResult()
	files, err := a.listFiles("846")
	if err != nil {
		return domain.SyncResult{}, err
	}

	var products []map[string]any
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		items, err := Parse846(string(raw))
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		result.RecordsProcessed += len(items)
		for _, item := range items {
			products = append(products, map[string]any{"gtin": item.GTIN, "upc": item.UPC})
		}
		a.archive(path)
	}
	result.Metadata["products"] = products
	return result.Complete(), nil
}

// SyncTransactions parses 810 invoices and reports one summary per
// invoice (number, total, line count) in Metadata["invoices"]; it writes
// no transaction records.
func (a *Adapter) SyncTransactions(ctx context.Context, t tenant.Handle, since time.Time) (domain.SyncResult, error) {
	result := domain.NewSyncResult()
	files, err := a.listFiles("810")
	if err != nil {
		return domain.SyncResult{}, err
	}

	var invoices []map[string]any
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		invoice, err := Parse810(string(raw))
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		result.RecordsProcessed += len(invoice.LineItems)
		invoices = append(invoices, map[string]any{
			"invoice_number": invoice.InvoiceNumber,
			"total":          invoice.TotalAmount,
			"lines":          len(invoice.LineItems),
		})
		a.archive(path)
	}
	result.Metadata["invoices"] = invoices
	return result.Complete(), nil
}

// SyncInventory parses 846 documents and, when a writer and resolver
// are configured, persists resolved inventory snapshots.
func (a *Adapter) SyncInventory(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	result := domain.NewSyncResult()
	files, err := a.listFiles("846")
	if err != nil {
		return domain.SyncResult{}, err
	}

	var records []domain.InventoryRecord
	var snapshot []map[string]any
	var processed []string
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		items, err := Parse846(string(raw))
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		result.RecordsProcessed += len(items)

		for _, item := range items {
			entry := map[string]any{
				"gtin":         item.GTIN,
				"qty_on_hand":  item.QuantityOnHand,
				"qty_on_order": item.QuantityOnOrder,
				"warehouse":    item.WarehouseID,
			}
			if !item.AsOfDate.IsZero() {
				entry["as_of"] = item.AsOfDate.Format(time.RFC3339)
			}
			snapshot = append(snapshot, entry)

			if a.resolver == nil {
				continue
			}
			productID, ok, rerr := a.resolver.ResolveProduct(ctx, item.GTIN)
			if rerr != nil || !ok {
				continue
			}
			storeID, ok, rerr := a.resolver.ResolveStore(ctx, item.WarehouseID)
			if rerr != nil || !ok {
				continue
			}
			ts := item.AsOfDate
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			records = append(records, domain.InventoryRecord{
				TenantID:          t.ID(),
				StoreID:           storeID,
				ProductID:         productID,
				Timestamp:         ts,
				QuantityOnHand:    item.QuantityOnHand,
				QuantityAvailable: item.QuantityOnHand - item.QuantityOnOrder,
				Source:            "edi_846",
			})
		}
		processed = append(processed, path)
	}
	result.Metadata["inventory_items"] = snapshot

	if a.invWriter != nil && len(records) > 0 {
		written, werr := a.invWriter.WriteInventory(ctx, records)
		if werr != nil {
			result.RecordsFailed += len(records)
			result.Errors = append(result.Errors, werr.Error())
			return result.Complete(), nil
		}
		result.Metadata["inventory_written"] = written
	}
	for _, path := range processed {
		a.archive(path)
	}

	return result.Complete(), nil
}

// listFiles returns inbound files whose ST segment matches docType,
// never trusting the filename.
func (a *Adapter) listFiles(docType string) ([]string, error) {
	entries, err := os.ReadDir(a.cfg.InputDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list edi input dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		if !strings.HasSuffix(lower, ".edi") && !strings.HasSuffix(lower, ".x12") && !strings.HasSuffix(lower, ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var matched []string
	for _, name := range names {
		path := filepath.Join(a.cfg.InputDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if txnType, ok := DetectTransactionType(string(raw)); ok && txnType == docType {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// archive moves a successfully processed file out of the inbound
// directory; partial failures intentionally leave the file in place so
// the next sync retries it.
func (a *Adapter) archive(path string) {
	if err := os.MkdirAll(a.cfg.ArchiveDir, 0o755); err != nil {
		a.log.Warn().Err(err).Str("file", path).Msg("failed to create archive dir")
		return
	}
	dest := filepath.Join(a.cfg.ArchiveDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		a.log.Warn().Err(err).Str("file", path).Msg("failed to archive processed file")
	}
}
