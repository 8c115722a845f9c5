package event

import (
	"fmt"
)

// Schema names the fields an event must carry before it is normalized.
// Mirrors the Python reference's validate_event/TRANSACTION_EVENT_SCHEMA.
type Schema struct {
	RequiredFields []string
	ItemFields     []string
}

var transactionEventSchema = Schema{
	RequiredFields: []string{"event_id", "store_id", "timestamp", "items"},
	ItemFields:     []string{"sku", "quantity", "unit_price", "total"},
}

var inventoryEventSchema = Schema{
	RequiredFields: []string{"event_id", "store_id", "timestamp", "items"},
	ItemFields:     []string{"sku", "quantity_on_hand"},
}

// ValidateEvent reports every missing required field, matching the
// reference implementation's accumulate-all-errors behavior rather
// than failing fast on the first miss.
func ValidateEvent(e map[string]any, schema Schema) []string {
	var errs []string
	for _, field := range schema.RequiredFields {
		if _, ok := e[field]; !ok {
			errs = append(errs, fmt.Sprintf("missing required field: %s", field))
		}
	}
	for i, raw := range asSlice(e["items"]) {
		item := asMap(raw)
		for _, field := range schema.ItemFields {
			if _, ok := item[field]; !ok {
				errs = append(errs, fmt.Sprintf("missing required field: items[%d].%s", i, field))
			}
		}
	}
	return errs
}

// normalizedTransaction is the per-line-item shape produced by
// NormalizeTransactionEvent, ahead of ID resolution.
type normalizedTransaction struct {
	ExternalID  string
	StoreCode   string
	SKU         string
	Quantity    float64
	UnitPrice   float64
	TotalAmount float64
	Timestamp   string
}

// normalizedInventory is the per-line-item shape produced by
// NormalizeInventoryEvent, ahead of ID resolution.
type normalizedInventory struct {
	StoreCode       string
	SKU             string
	QuantityOnHand  float64
	QuantityOnOrder float64
	Source          string
	Timestamp       string
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// NormalizeTransactionEvent expands a transaction.completed event's
// line items into one record per item, per event_adapter.py's
// normalize_transaction_event.
func NormalizeTransactionEvent(e map[string]any) []normalizedTransaction {
	var out []normalizedTransaction
	for _, raw := range asSlice(e["items"]) {
		item := asMap(raw)
		out = append(out, normalizedTransaction{
			ExternalID:  asString(e["event_id"]),
			StoreCode:   asString(e["store_id"]),
			SKU:         asString(item["sku"]),
			Quantity:    asFloat(item["quantity"]),
			UnitPrice:   asFloat(item["unit_price"]),
			TotalAmount: asFloat(item["total"]),
			Timestamp:   asString(e["timestamp"]),
		})
	}
	return out
}

// NormalizeInventoryEvent expands an inventory.adjusted event's line
// items into one record per item, per event_adapter.py's
// normalize_inventory_event.
func NormalizeInventoryEvent(e map[string]any) []normalizedInventory {
	var out []normalizedInventory
	reason := asString(e["reason"])
	if reason == "" {
		reason = "unknown"
	}
	for _, raw := range asSlice(e["items"]) {
		item := asMap(raw)
		out = append(out, normalizedInventory{
			StoreCode:       asString(e["store_id"]),
			SKU:             asString(item["sku"]),
			QuantityOnHand:  asFloat(item["quantity_on_hand"]),
			QuantityOnOrder: asFloat(item["quantity_on_order"]),
			Source:          "event_" + reason,
			Timestamp:       asString(e["timestamp"]),
		})
	}
	return out
}
