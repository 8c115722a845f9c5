// Package features builds the two explicit typed feature tiers used
// by training and the forecast runtime. Columns are
// frozen Go struct fields, not a dynamic map, so a training/prediction
// column mismatch is a compile-time error rather than a runtime
// surprise.
package features

// Tier names one of the two feature schemas a model can be trained
// and served against.
type Tier string

const (
	ColdStart  Tier = "cold_start"
	Production Tier = "production"
)

// DetectTier auto-detects the tier a row's available inputs support.
// Production requires every one of {current_stock, unit_cost,
// unit_price, store_inventory_turnover, days_of_supply} to be present
// and non-zero; any miss falls back to
// cold_start.
func DetectTier(currentStock, unitCost, unitPrice, storeInventoryTurnover, daysOfSupply float64, hasAll bool) Tier {
	if hasAll && currentStock != 0 && unitCost != 0 && unitPrice != 0 && storeInventoryTurnover != 0 && daysOfSupply != 0 {
		return Production
	}
	return ColdStart
}
