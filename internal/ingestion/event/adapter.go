// Package event implements the real-time streaming source adapter:
// a Kafka/Pub-Sub-style event broker consumed in bounded batches and
// normalized into ShelfOps canonical records.
package event

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

// Config names the topics this tenant's gateway exposes and the poll
// bound applied per sync call, mirroring the reference adapter's
// "topics"/"max_poll_records" config keys.
type Config struct {
	Topics struct {
		Transactions string
		Inventory    string
		Products     string
	}
	MaxPollRecords int
	Encoding       Encoding
}

// Adapter consumes transaction.completed, inventory.adjusted, and
// product.updated events from a Broker and persists their normalized
// records idempotently.
type Adapter struct {
	cfg       Config
	broker    Broker
	txWriter  domain.TransactionWriter
	invWriter domain.InventoryWriter
	resolver  domain.StoreProductResolver
	log       zerolog.Logger
}

// New constructs an Adapter. resolver may be nil, in which case
// records whose store/product cannot be resolved are counted as
// failures rather than silently dropped.
func New(cfg Config, broker Broker, txWriter domain.TransactionWriter, invWriter domain.InventoryWriter, resolver domain.StoreProductResolver, log zerolog.Logger) *Adapter {
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = 500
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingJSON
	}
	return &Adapter{
		cfg:       cfg,
		broker:    broker,
		txWriter:  txWriter,
		invWriter: invWriter,
		resolver:  resolver,
		log:       log.With().Str("component", "event.Adapter").Logger(),
	}
}

func (a *Adapter) Kind() ingestion.Kind { return ingestion.KindEvent }

// TestConnection confirms the broker is reachable by polling the
// transactions topic with a zero-record budget; a WebSocketBroker
// dials lazily so this also exercises the handshake.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.cfg.Topics.Transactions == "" {
		return fmt.Errorf("event adapter: no topics configured")
	}
	_, err := a.broker.PollBatch(ctx, a.cfg.Topics.Transactions, 0)
	if err != nil {
		return fmt.Errorf("event broker unreachable: %w", err)
	}
	return nil
}

// SyncStores is a no-op: store masters aren't streamed, matching the
// reference adapter's sync_stores.
func (a *Adapter) SyncStores(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	return domain.NewSyncResult().Complete(), nil
}

// SyncProducts consumes the products topic and records each event's
// embedded product payload as metadata for the catalog sync job to
// merge, mirroring the reference's pass-through normalizer.
func (a *Adapter) SyncProducts(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	if a.cfg.Topics.Products == "" {
		return domain.NewSyncResult().Complete(), nil
	}
	result := domain.NewSyncResult()
	result.Metadata["products"] = []any{}

	messages, err := a.broker.PollBatch(ctx, a.cfg.Topics.Products, a.cfg.MaxPollRecords)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		r := result.Complete()
		return r, nil
	}

	var committed []int64
	for _, msg := range messages {
		event, err := DecodeEvent(msg.Value, a.cfg.Encoding)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %s", msg.Offset, err))
			continue
		}
		product, _ := event["product"].(map[string]any)
		result.Metadata["products"] = append(result.Metadata["products"].([]any), product)
		result.RecordsProcessed++
		committed = append(committed, msg.Offset)
	}

	if len(committed) > 0 {
		if err := a.broker.Commit(ctx, a.cfg.Topics.Products, committed); err != nil {
			a.log.Warn().Err(err).Msg("failed to commit product event offsets")
		}
	}

	r := result.Complete()
	return r, nil
}

// SyncTransactions consumes the transactions topic in bounded batches,
// validates each event's schema, normalizes its line items, resolves
// external store/SKU identifiers, and persists them idempotently on
// ExternalID. Offsets are only committed for the batch once every
// normalized row from it has been durably written.
func (a *Adapter) SyncTransactions(ctx context.Context, t tenant.Handle, since time.Time) (domain.SyncResult, error) {
	if a.cfg.Topics.Transactions == "" {
		r := domain.NewSyncResult().Complete()
		return r, nil
	}
	result := domain.NewSyncResult()

	messages, err := a.broker.PollBatch(ctx, a.cfg.Topics.Transactions, a.cfg.MaxPollRecords)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		r := result.Complete()
		return r, nil
	}

	var records []domain.TransactionRecord
	var committed []int64
	for _, msg := range messages {
		event, err := DecodeEvent(msg.Value, a.cfg.Encoding)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %s", msg.Offset, err))
			continue
		}
		if errs := ValidateEvent(event, transactionEventSchema); len(errs) > 0 {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %v", msg.Offset, errs))
			continue
		}

		rowsOK := true
		for _, nt := range NormalizeTransactionEvent(event) {
			rec, err := a.resolveTransaction(ctx, t, nt)
			if err != nil {
				result.RecordsFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %s", msg.Offset, err))
				rowsOK = false
				continue
			}
			records = append(records, rec)
		}
		if rowsOK {
			committed = append(committed, msg.Offset)
		}
		result.RecordsProcessed++
	}

	if len(records) > 0 && a.txWriter != nil {
		if _, err := a.txWriter.WriteTransactions(ctx, records); err != nil {
			result.Status = domain.SyncFailed
			result.Errors = append(result.Errors, err.Error())
			r := result.Complete()
			return r, nil
		}
	}

	if len(committed) > 0 {
		if err := a.broker.Commit(ctx, a.cfg.Topics.Transactions, committed); err != nil {
			a.log.Warn().Err(err).Msg("failed to commit transaction event offsets")
		}
	}

	r := result.Complete()
	return r, nil
}

// SyncInventory consumes the inventory topic, validates and
// normalizes adjustment events, resolves identifiers, and persists
// snapshot rows.
func (a *Adapter) SyncInventory(ctx context.Context, t tenant.Handle) (domain.SyncResult, error) {
	if a.cfg.Topics.Inventory == "" {
		r := domain.NewSyncResult().Complete()
		return r, nil
	}
	result := domain.NewSyncResult()

	messages, err := a.broker.PollBatch(ctx, a.cfg.Topics.Inventory, a.cfg.MaxPollRecords)
	if err != nil {
		result.Status = domain.SyncFailed
		result.Errors = append(result.Errors, err.Error())
		r := result.Complete()
		return r, nil
	}

	var records []domain.InventoryRecord
	var committed []int64
	for _, msg := range messages {
		event, err := DecodeEvent(msg.Value, a.cfg.Encoding)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %s", msg.Offset, err))
			continue
		}
		if errs := ValidateEvent(event, inventoryEventSchema); len(errs) > 0 {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %v", msg.Offset, errs))
			continue
		}

		rowsOK := true
		for _, ni := range NormalizeInventoryEvent(event) {
			rec, err := a.resolveInventory(ctx, t, ni)
			if err != nil {
				result.RecordsFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("offset=%d: %s", msg.Offset, err))
				rowsOK = false
				continue
			}
			records = append(records, rec)
		}
		if rowsOK {
			committed = append(committed, msg.Offset)
		}
		result.RecordsProcessed++
	}

	if len(records) > 0 && a.invWriter != nil {
		if _, err := a.invWriter.WriteInventory(ctx, records); err != nil {
			result.Status = domain.SyncFailed
			result.Errors = append(result.Errors, err.Error())
			r := result.Complete()
			return r, nil
		}
	}

	if len(committed) > 0 {
		if err := a.broker.Commit(ctx, a.cfg.Topics.Inventory, committed); err != nil {
			a.log.Warn().Err(err).Msg("failed to commit inventory event offsets")
		}
	}

	r := result.Complete()
	return r, nil
}

func (a *Adapter) resolveTransaction(ctx context.Context, t tenant.Handle, nt normalizedTransaction) (domain.TransactionRecord, error) {
	storeID, productID, err := a.resolveIDs(ctx, nt.StoreCode, nt.SKU)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	ts, _ := time.Parse(time.RFC3339, nt.Timestamp)
	return domain.TransactionRecord{
		TenantID:        t.ID(),
		ExternalID:      nt.ExternalID,
		StoreID:         storeID,
		ProductID:       productID,
		Timestamp:       ts,
		Quantity:        int(nt.Quantity),
		UnitPrice:       nt.UnitPrice,
		TotalAmount:     nt.TotalAmount,
		TransactionType: domain.TransactionSale,
	}, nil
}

func (a *Adapter) resolveInventory(ctx context.Context, t tenant.Handle, ni normalizedInventory) (domain.InventoryRecord, error) {
	storeID, productID, err := a.resolveIDs(ctx, ni.StoreCode, ni.SKU)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	ts, _ := time.Parse(time.RFC3339, ni.Timestamp)
	return domain.InventoryRecord{
		TenantID:          t.ID(),
		StoreID:           storeID,
		ProductID:         productID,
		Timestamp:         ts,
		QuantityOnHand:    int(ni.QuantityOnHand),
		QuantityAvailable: int(ni.QuantityOnHand - ni.QuantityOnOrder),
		Source:            ni.Source,
	}, nil
}

func (a *Adapter) resolveIDs(ctx context.Context, storeCode, sku string) (storeID, productID uuid.UUID, err error) {
	if a.resolver == nil {
		return storeID, productID, fmt.Errorf("no store/product resolver configured")
	}
	sID, ok, err := a.resolver.ResolveStore(ctx, storeCode)
	if err != nil {
		return storeID, productID, err
	}
	if !ok {
		return storeID, productID, fmt.Errorf("unresolved store_id %q", storeCode)
	}
	pID, ok, err := a.resolver.ResolveProduct(ctx, sku)
	if err != nil {
		return storeID, productID, err
	}
	if !ok {
		return storeID, productID, fmt.Errorf("unresolved sku %q", sku)
	}
	return sID, pID, nil
}

var _ ingestion.Adapter = (*Adapter)(nil)
