package pos

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/tenant"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	locations []Location
	items     []CatalogItem
	counts    []InventoryCount
	orders    []Order
	err       error
}

func (c *fakeClient) ListLocations(ctx context.Context) ([]Location, error) { return c.locations, c.err }
func (c *fakeClient) ListCatalogItems(ctx context.Context) ([]CatalogItem, error) {
	return c.items, c.err
}
func (c *fakeClient) ListInventoryCounts(ctx context.Context, locationIDs []string) ([]InventoryCount, error) {
	return c.counts, c.err
}
func (c *fakeClient) ListOrders(ctx context.Context, locationIDs []string, since time.Time) ([]Order, error) {
	return c.orders, c.err
}

type fakeResolver struct {
	stores   map[string]uuid.UUID
	products map[string]uuid.UUID
}

func (r *fakeResolver) ResolveStore(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	id, ok := r.stores[externalID]
	return id, ok, nil
}

func (r *fakeResolver) ResolveProduct(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	id, ok := r.products[externalID]
	return id, ok, nil
}

type fakeTxWriter struct{ records []domain.TransactionRecord }

func (w *fakeTxWriter) WriteTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error) {
	w.records = append(w.records, records...)
	return len(records), nil
}

type fakeInvWriter struct{ records []domain.InventoryRecord }

func (w *fakeInvWriter) WriteInventory(ctx context.Context, records []domain.InventoryRecord) (int, error) {
	w.records = append(w.records, records...)
	return len(records), nil
}

func testHandle() tenant.Handle { return tenant.New(uuid.New(), "acme") }

func TestAdapter_SyncTransactions_IdempotentExternalID(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	client := &fakeClient{
		locations: []Location{{ID: "LOC_1", Name: "Downtown"}},
		orders: []Order{
			{
				ID:         "order_1",
				LocationID: "LOC_1",
				CreatedAt:  time.Now(),
				LineItems: []OrderLineItem{
					{UID: "line_1", CatalogObjectID: "SKU_1", Quantity: 2, BasePriceCents: 499, TotalCents: 998},
				},
			},
		},
	}
	resolver := &fakeResolver{
		stores:   map[string]uuid.UUID{"LOC_1": storeID},
		products: map[string]uuid.UUID{"SKU_1": productID},
	}
	txWriter := &fakeTxWriter{}
	adapter := New(Config{}, client, txWriter, nil, resolver, zerolog.Nop())

	result, err := adapter.SyncTransactions(context.Background(), testHandle(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, result.Status)
	require.Len(t, txWriter.records, 1)
	assert.Equal(t, "order_1:line_1", txWriter.records[0].ExternalID)
	assert.Equal(t, storeID, txWriter.records[0].StoreID)
	assert.Equal(t, productID, txWriter.records[0].ProductID)
	assert.InDelta(t, 4.99, txWriter.records[0].UnitPrice, 0.001)
}

func TestAdapter_SyncTransactions_UnresolvedWithoutDemoModeFails(t *testing.T) {
	client := &fakeClient{
		locations: []Location{{ID: "LOC_1"}},
		orders: []Order{
			{ID: "order_1", LocationID: "LOC_1", LineItems: []OrderLineItem{{UID: "line_1", CatalogObjectID: "SKU_1"}}},
		},
	}
	resolver := &fakeResolver{stores: map[string]uuid.UUID{}, products: map[string]uuid.UUID{}}
	adapter := New(Config{}, client, &fakeTxWriter{}, nil, resolver, zerolog.Nop())

	result, err := adapter.SyncTransactions(context.Background(), testHandle(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsFailed)
}

func TestAdapter_SyncTransactions_DemoModeSynthesizesMappingDeterministically(t *testing.T) {
	client := &fakeClient{
		locations: []Location{{ID: "LOC_1"}},
		orders: []Order{
			{ID: "order_1", LocationID: "LOC_1", LineItems: []OrderLineItem{{UID: "line_1", CatalogObjectID: "SKU_1", Quantity: 1}}},
		},
	}
	txWriter := &fakeTxWriter{}
	adapter := New(Config{DemoMode: true}, client, txWriter, nil, nil, zerolog.Nop())

	result, err := adapter.SyncTransactions(context.Background(), testHandle(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, result.Status)
	require.Len(t, txWriter.records, 1)
	firstStoreID := txWriter.records[0].StoreID

	txWriter.records = nil
	_, err = adapter.SyncTransactions(context.Background(), testHandle(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, firstStoreID, txWriter.records[0].StoreID, "demo synthesis must be deterministic across calls")
}

func TestAdapter_SyncInventory_WritesOneRecordPerCount(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	client := &fakeClient{
		locations: []Location{{ID: "LOC_1"}},
		counts:    []InventoryCount{{CatalogObjectID: "SKU_1", LocationID: "LOC_1", Quantity: 45}},
	}
	resolver := &fakeResolver{
		stores:   map[string]uuid.UUID{"LOC_1": storeID},
		products: map[string]uuid.UUID{"SKU_1": productID},
	}
	invWriter := &fakeInvWriter{}
	adapter := New(Config{}, client, nil, invWriter, resolver, zerolog.Nop())

	result, err := adapter.SyncInventory(context.Background(), testHandle())
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, result.Status)
	require.Len(t, invWriter.records, 1)
	assert.Equal(t, 45, invWriter.records[0].QuantityOnHand)
	assert.Equal(t, "pos_poll", invWriter.records[0].Source)
}

func TestAdapter_SyncStores_ReportsLocationsInMetadata(t *testing.T) {
	client := &fakeClient{locations: []Location{{ID: "LOC_1", Name: "Downtown"}, {ID: "LOC_2", Name: "Uptown"}}}
	adapter := New(Config{}, client, nil, nil, nil, zerolog.Nop())

	result, err := adapter.SyncStores(context.Background(), testHandle())
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsProcessed)
}

func TestAdapter_TestConnection_PropagatesClientError(t *testing.T) {
	client := &fakeClient{err: assertErr{}}
	adapter := New(Config{}, client, nil, nil, nil, zerolog.Nop())
	err := adapter.TestConnection(context.Background())
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
