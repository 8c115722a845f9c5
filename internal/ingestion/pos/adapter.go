package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/ingestion"
	"github.com/aristath/sentinel/internal/tenant"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config controls one tenant's POS integration.
type Config struct {
	// DemoMode synthesizes a deterministic store/product UUID for any
	// external location/catalog id the resolver can't place, instead
	// of failing the record — used for sandbox tenants exploring the
	// product without a populated store/product mapping table yet.
	DemoMode bool
}

// Adapter polls Square-style location/catalog/inventory/order
// endpoints and resolves external ids to tenant store/product ids via
// a domain.StoreProductResolver.
type Adapter struct {
	cfg       Config
	client    Client
	txWriter  domain.TransactionWriter
	invWriter domain.InventoryWriter
	resolver  domain.StoreProductResolver
	log       zerolog.Logger
}

// New constructs a POS adapter.
func New(cfg Config, client Client, txWriter domain.TransactionWriter, invWriter domain.InventoryWriter, resolver domain.StoreProductResolver, log zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		client:    client,
		txWriter:  txWriter,
		invWriter: invWriter,
		resolver:  resolver,
		log:       log.With().Str("component", "pos.Adapter").Logger(),
	}
}

func (a *Adapter) Kind() ingestion.Kind { return ingestion.KindPOS }

func (a *Adapter) TestConnection(ctx context.Context) error {
	if _, err := a.client.ListLocations(ctx); err != nil {
		return fmt.Errorf("square connectivity check failed: %w", err)
	}
	return nil
}

// SyncStores lists locations; ShelfOps has no StoreWriter (store
// masters are seeded once via admin tooling, scope), so
// this reports the catalog in Metadata for an operator to reconcile.
func (a *Adapter) SyncStores(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	result := domain.NewSyncResult()
	locations, err := a.client.ListLocations(ctx)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		return result.Complete(), nil
	}
	result.RecordsProcessed = len(locations)
	result.Metadata["locations"] = locations
	return result.Complete(), nil
}

// SyncProducts lists catalog item variations; see SyncStores for why
// there is no direct writer.
func (a *Adapter) SyncProducts(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	result := domain.NewSyncResult()
	items, err := a.client.ListCatalogItems(ctx)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		return result.Complete(), nil
	}
	result.RecordsProcessed = len(items)
	result.Metadata["catalog_items"] = items
	return result.Complete(), nil
}

// SyncTransactions polls orders created since the watermark and writes
// one TransactionRecord per line item, idempotent on
// external_id = "{order_id}:{line_uid}".
func (a *Adapter) SyncTransactions(ctx context.Context, t tenant.Handle, since time.Time) (domain.SyncResult, error) {
	result := domain.NewSyncResult()

	locationIDs, err := a.locationIDs(ctx)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		return result.Complete(), nil
	}

	orders, err := a.client.ListOrders(ctx, locationIDs, since)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		return result.Complete(), nil
	}

	var records []domain.TransactionRecord
	for _, order := range orders {
		storeID, ok, err := a.resolveStore(ctx, order.LocationID)
		if err != nil || !ok {
			result.RecordsFailed += len(order.LineItems)
			result.Errors = append(result.Errors, fmt.Sprintf("order %s: unresolved location %q", order.ID, order.LocationID))
			continue
		}
		for _, li := range order.LineItems {
			productID, ok, err := a.resolveProduct(ctx, li.CatalogObjectID)
			if err != nil || !ok {
				result.RecordsFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("order %s: unresolved catalog object %q", order.ID, li.CatalogObjectID))
				continue
			}
			records = append(records, domain.TransactionRecord{
				TenantID:        t.ID(),
				ExternalID:      fmt.Sprintf("%s:%s", order.ID, li.UID),
				StoreID:         storeID,
				ProductID:       productID,
				Timestamp:       order.CreatedAt,
				Quantity:        li.Quantity,
				UnitPrice:       float64(li.BasePriceCents) / 100,
				TotalAmount:     float64(li.TotalCents) / 100,
				TransactionType: domain.TransactionSale,
			})
			result.RecordsProcessed++
		}
	}

	if len(records) > 0 && a.txWriter != nil {
		if _, err := a.txWriter.WriteTransactions(ctx, records); err != nil {
			result.Status = domain.SyncFailed
			result.Errors = append(result.Errors, err.Error())
			return result.Complete(), nil
		}
	}

	return result.Complete(), nil
}

// SyncInventory polls current on-hand counts across every known
// location and writes one InventoryRecord per (location, catalog
// object) count.
func (a *Adapter) SyncInventory(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	result := domain.NewSyncResult()

	locationIDs, err := a.locationIDs(ctx)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		return result.Complete(), nil
	}

	counts, err := a.client.ListInventoryCounts(ctx, locationIDs)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		return result.Complete(), nil
	}

	var records []domain.InventoryRecord
	now := time.Now().UTC()
	for _, c := range counts {
		storeID, ok, err := a.resolveStore(ctx, c.LocationID)
		if err != nil || !ok {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("unresolved location %q", c.LocationID))
			continue
		}
		productID, ok, err := a.resolveProduct(ctx, c.CatalogObjectID)
		if err != nil || !ok {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("unresolved catalog object %q", c.CatalogObjectID))
			continue
		}
		records = append(records, domain.InventoryRecord{
			TenantID:          t.ID(),
			StoreID:           storeID,
			ProductID:         productID,
			Timestamp:         now,
			QuantityOnHand:    c.Quantity,
			QuantityAvailable: c.Quantity,
			Source:            "pos_poll",
		})
		result.RecordsProcessed++
	}

	if len(records) > 0 && a.invWriter != nil {
		if _, err := a.invWriter.WriteInventory(ctx, records); err != nil {
			result.Status = domain.SyncFailed
			result.Errors = append(result.Errors, err.Error())
			return result.Complete(), nil
		}
	}

	return result.Complete(), nil
}

func (a *Adapter) locationIDs(ctx context.Context) ([]string, error) {
	locations, err := a.client.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// demoNamespace scopes synthesized UUIDs away from any real
// tenant-assigned id space.
var demoNamespace = uuid.MustParse("5d1f1d1a-70e1-4b7a-9f0e-8a0b2c6d9e11")

func (a *Adapter) resolveStore(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	if a.resolver != nil {
		id, ok, err := a.resolver.ResolveStore(ctx, externalID)
		if err != nil {
			return uuid.Nil, false, err
		}
		if ok {
			return id, true, nil
		}
	}
	if a.cfg.DemoMode {
		return uuid.NewSHA1(demoNamespace, []byte("store:"+externalID)), true, nil
	}
	return uuid.Nil, false, nil
}

func (a *Adapter) resolveProduct(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	if a.resolver != nil {
		id, ok, err := a.resolver.ResolveProduct(ctx, externalID)
		if err != nil {
			return uuid.Nil, false, err
		}
		if ok {
			return id, true, nil
		}
	}
	if a.cfg.DemoMode {
		return uuid.NewSHA1(demoNamespace, []byte("product:"+externalID)), true, nil
	}
	return uuid.Nil, false, nil
}

var _ ingestion.Adapter = (*Adapter)(nil)
