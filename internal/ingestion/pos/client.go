// Package pos implements the polling POS adapter, modeled on Square's
// REST API conventions (: "POS adapter (reference:
// Square)").
package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Location mirrors a Square location object, trimmed to the fields
// this adapter needs.
type Location struct {
	ID   string
	Name string
}

// CatalogItem mirrors a Square ITEM_VARIATION catalog object.
type CatalogItem struct {
	ID  string
	SKU string
}

// InventoryCount mirrors one row of Square's inventory counts batch
// response.
type InventoryCount struct {
	CatalogObjectID string
	LocationID      string
	Quantity        int
}

// OrderLineItem mirrors one line item of a Square order.
type OrderLineItem struct {
	UID             string
	CatalogObjectID string
	Quantity        int
	BasePriceCents  int64
	TotalCents      int64
}

// Order mirrors a Square order, trimmed to what transaction
// normalization needs.
type Order struct {
	ID         string
	LocationID string
	CreatedAt  time.Time
	LineItems  []OrderLineItem
}

// Client is the capability set the adapter polls. The HTTP
// implementation below talks to Square's REST API; tests and demo
// tenants use a fake that returns fixture data.
type Client interface {
	ListLocations(ctx context.Context) ([]Location, error)
	ListCatalogItems(ctx context.Context) ([]CatalogItem, error)
	ListInventoryCounts(ctx context.Context, locationIDs []string) ([]InventoryCount, error)
	ListOrders(ctx context.Context, locationIDs []string, since time.Time) ([]Order, error)
}

// HTTPClient is a minimal Square REST client: bearer-token auth over
// net/http, a thin wrapper over the handful of endpoints this adapter
// needs.
type HTTPClient struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// NewHTTPClient constructs a client against Square's sandbox or
// production host.
func NewHTTPClient(baseURL, accessToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", "2024-01-18")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("square request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("square returned status %d for %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode square response: %w", err)
	}
	return nil
}

func (c *HTTPClient) ListLocations(ctx context.Context) ([]Location, error) {
	var resp struct {
		Locations []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/locations", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(resp.Locations))
	for _, l := range resp.Locations {
		out = append(out, Location{ID: l.ID, Name: l.Name})
	}
	return out, nil
}

func (c *HTTPClient) ListCatalogItems(ctx context.Context) ([]CatalogItem, error) {
	var resp struct {
		Objects []struct {
			ID                 string `json:"id"`
			ItemVariationData struct {
				SKU string `json:"sku"`
			} `json:"item_variation_data"`
		} `json:"objects"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/catalog/list?types=ITEM_VARIATION", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]CatalogItem, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		out = append(out, CatalogItem{ID: o.ID, SKU: o.ItemVariationData.SKU})
	}
	return out, nil
}

func (c *HTTPClient) ListInventoryCounts(ctx context.Context, locationIDs []string) ([]InventoryCount, error) {
	var resp struct {
		Counts []struct {
			CatalogObjectID string `json:"catalog_object_id"`
			LocationID      string `json:"location_id"`
			Quantity        string `json:"quantity"`
		} `json:"counts"`
	}
	req := map[string]any{"location_ids": locationIDs}
	if err := c.do(ctx, http.MethodPost, "/v2/inventory/counts/batch-retrieve", req, &resp); err != nil {
		return nil, err
	}
	out := make([]InventoryCount, 0, len(resp.Counts))
	for _, row := range resp.Counts {
		qty := 0
		fmt.Sscanf(row.Quantity, "%d", &qty)
		out = append(out, InventoryCount{CatalogObjectID: row.CatalogObjectID, LocationID: row.LocationID, Quantity: qty})
	}
	return out, nil
}

func (c *HTTPClient) ListOrders(ctx context.Context, locationIDs []string, since time.Time) ([]Order, error) {
	var resp struct {
		Orders []struct {
			ID         string `json:"id"`
			LocationID string `json:"location_id"`
			CreatedAt  string `json:"created_at"`
			LineItems  []struct {
				UID             string `json:"uid"`
				CatalogObjectID string `json:"catalog_object_id"`
				Quantity        string `json:"quantity"`
				BasePriceMoney  struct {
					Amount int64 `json:"amount"`
				} `json:"base_price_money"`
				TotalMoney struct {
					Amount int64 `json:"amount"`
				} `json:"total_money"`
			} `json:"line_items"`
		} `json:"orders"`
	}
	req := map[string]any{
		"location_ids": locationIDs,
		"query": map[string]any{
			"filter": map[string]any{
				"date_time_filter": map[string]any{
					"created_at": map[string]any{"start_at": since.Format(time.RFC3339)},
				},
			},
		},
	}
	if err := c.do(ctx, http.MethodPost, "/v2/orders/search", req, &resp); err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		createdAt, _ := time.Parse(time.RFC3339, o.CreatedAt)
		order := Order{ID: o.ID, LocationID: o.LocationID, CreatedAt: createdAt}
		for _, li := range o.LineItems {
			qty := 0
			fmt.Sscanf(li.Quantity, "%d", &qty)
			order.LineItems = append(order.LineItems, OrderLineItem{
				UID:             li.UID,
				CatalogObjectID: li.CatalogObjectID,
				Quantity:        qty,
				BasePriceCents:  li.BasePriceMoney.Amount,
				TotalCents:      li.TotalMoney.Amount,
			})
		}
		out = append(out, order)
	}
	return out, nil
}
