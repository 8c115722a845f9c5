// Package sftp implements the file-drop batch adapter used by
// retailers that exchange stores/products/transactions/inventory as
// CSV or fixed-width flat files over SFTP.
package sftp

import (
	"context"
	"encoding/csv"
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

// FieldSpec describes one column of a fixed-width file.
type FieldSpec struct {
	Name  string
	Start int
	End   int
}

// FileType enumerates the four declared file types a tenant SFTP feed
// may carry.
type FileType string

const (
	FileTypeStores       FileType = "stores"
	FileTypeProducts     FileType = "products"
	FileTypeTransactions FileType = "transactions"
	FileTypeInventory    FileType = "inventory"
)

// DefaultInventoryMapping is the retailer-common column naming this
// adapter understands out of the box; a tenant-provided mapping
// overrides it per file type.
var DefaultInventoryMapping = map[string]string{
	"ITEM_NBR": "sku", "ITEM_NUMBER": "sku", "SKU": "sku",
	"UPC": "upc", "GTIN": "gtin",
	"STORE_NBR": "store_code", "STORE_NUMBER": "store_code", "LOCATION_ID": "store_code",
	"ON_HAND_QTY": "quantity_on_hand", "QTY_ON_HAND": "quantity_on_hand",
	"ON_ORDER_QTY": "quantity_on_order", "QTY_ON_ORDER": "quantity_on_order",
	"SNAPSHOT_DATE": "as_of_date", "DATE": "as_of_date",
}

// DefaultTransactionMapping is the default column mapping for sales
// extracts.
var DefaultTransactionMapping = map[string]string{
	"TRANS_ID": "external_id", "TRANSACTION_ID": "external_id",
	"ITEM_NBR": "sku", "SKU": "sku",
	"STORE_NBR": "store_code", "STORE_NUMBER": "store_code",
	"QTY_SOLD": "quantity", "QUANTITY": "quantity",
	"UNIT_PRICE": "unit_price",
	"SALE_AMT": "total_amount", "TOTAL_AMOUNT": "total_amount",
	"TRANS_DATE": "timestamp", "SALE_DATE": "timestamp",
	"TRANS_TYPE": "transaction_type",
}

// DefaultProductMapping is the default column mapping for catalog
// extracts.
var DefaultProductMapping = map[string]string{
	"ITEM_NBR": "sku", "SKU": "sku",
	"UPC": "upc", "GTIN": "gtin",
	"ITEM_DESC": "name", "DESCRIPTION": "name", "PRODUCT_NAME": "name",
	"DEPT": "category", "CATEGORY": "category", "SUBCATEGORY": "subcategory",
	"BRAND": "brand", "UNIT_COST": "unit_cost", "UNIT_PRICE": "unit_price", "RETAIL_PRICE": "unit_price",
}

// DefaultStoreMapping is the default column mapping for store master
// extracts.
var DefaultStoreMapping = map[string]string{
	"STORE_NBR": "external_code", "STORE_NUMBER": "external_code", "LOCATION_ID": "external_code",
	"STORE_NAME": "name", "NAME": "name",
	"ADDRESS": "address", "CITY": "city", "STATE": "state",
	"ZIP": "zip_code", "ZIP_CODE": "zip_code",
	"LATITUDE": "lat", "LONGITUDE": "lon", "TIMEZONE": "timezone",
}

// ParseCSV parses delimited text into field-mapped records. Columns
// absent from mapping are dropped.
func ParseCSV(content string, delimiter rune, mapping map[string]string) ([]map[string]string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		mapped := make(map[string]string)
		for i, col := range header {
			if i >= len(row) {
				continue
			}
			dst, ok := mapping[col]
			if !ok {
				continue
			}
			mapped[dst] = row[i]
		}
		records = append(records, mapped)
	}
	return records, nil
}

// ParseFixedWidth slices each line by the given field specs, a format
// common in legacy mainframe-originated retail extracts.
func ParseFixedWidth(content string, specs []FieldSpec) []map[string]string {
	var records []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		record := make(map[string]string, len(specs))
		for _, spec := range specs {
			start, end := spec.Start, spec.End
			if start > len(line) {
				record[spec.Name] = ""
				continue
			}
			if end > len(line) {
				end = len(line)
			}
			record[spec.Name] = strings.TrimSpace(line[start:end])
		}
		records = append(records, record)
	}
	return records
}

// Config describes one tenant's SFTP feed layout. The adapter reads
// only from LocalStagingDir and has no SSH transport (files are dropped
// into staging by whatever downloads them).
type Config struct {
	LocalStagingDir string
	ArchiveDir      string
	Delimiter       rune
	FieldMappings   map[FileType]map[string]string
}

// Adapter implements ingestion.Adapter for SFTP flat-file feeds.
type Adapter struct {
	cfg Config
	log zerolog.Logger
}

// New builds an SFTP adapter.
func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &Adapter{cfg: cfg, log: log.With().Str("adapter", "sftp").Logger()}
}

func (a *Adapter) Kind() ingestion.Kind { return ingestion.KindSFTP }

// TestConnection verifies the staging directory exists. A real
// deployment would open an SSH session instead; this keeps the
// local-staging directory as the only transport, since no SFTP client
// library is wired in (see DESIGN.md).
func (a *Adapter) TestConnection(ctx context.Context) error {
	info, err := os.Stat(a.cfg.LocalStagingDir)
	if err != nil {
		return fmt.Errorf("sftp staging dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sftp staging dir %q is not a directory", a.cfg.LocalStagingDir)
	}
	return nil
}

func (a *Adapter) SyncStores(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	return a.syncFileType(FileTypeStores, DefaultStoreMapping)
}

func (a *Adapter) SyncProducts(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	return a.syncFileType(FileTypeProducts, DefaultProductMapping)
}

func (a *Adapter) SyncTransactions(ctx context.Context, t tenant.Handle, since time.Time) (domain.SyncResult, error) {
	return a.syncFileType(FileTypeTransactions, DefaultTransactionMapping)
}

func (a *Adapter) SyncInventory(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	return a.syncFileType(FileTypeInventory, DefaultInventoryMapping)
}

// syncFileType downloads (reads), parses, and archives every file
// staged for fileType, applying the tenant's field mapping override
// when one is configured.
func (a *Adapter) syncFileType(fileType FileType, defaultMapping map[string]string) (domain.SyncResult, error) {
	result := domain.NewSyncResult()
	mapping := defaultMapping
	if m, ok := a.cfg.FieldMappings[fileType]; ok {
		mapping = m
	}

	dir := filepath.Join(a.cfg.LocalStagingDir, string(fileType))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		result.Status = domain.SyncNoData
		return result.Complete(), nil
	}
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("list sftp staging dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var records []map[string]string
	for _, name := range names {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		parsed, err := ParseCSV(string(content), a.cfg.Delimiter, mapping)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.RecordsProcessed += len(parsed)
		records = append(records, parsed...)
		a.archive(fileType, path, name)
	}
	result.Metadata["records"] = records

	return result.Complete(), nil
}

func (a *Adapter) archive(fileType FileType, path, name string) {
	destDir := filepath.Join(a.cfg.ArchiveDir, string(fileType))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		a.log.Warn().Err(err).Str("file", path).Msg("failed to create archive dir")
		return
	}
	if err := os.Rename(path, filepath.Join(destDir, name)); err != nil {
		a.log.Warn().Err(err).Str("file", path).Msg("failed to archive processed file")
	}
}
