package alerts

import (
	"fmt"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// DefaultStockoutHorizonDays is the forward-looking window the
// stockout detector aggregates forecast demand over.
const DefaultStockoutHorizonDays = 7

// StockoutInventory answers which (store, product) pairs currently
// carry inventory and how much is shrinkage-adjusted available.
type StockoutInventory interface {
	ActivePairs(tenantID uuid.UUID) ([]Pair, error)
	Available(tenantID uuid.UUID, pair Pair) (float64, bool, error)
}

// StockoutForecasts sums a pair's forecast demand over the next N
// days from the most recently generated forecast batch.
type StockoutForecasts interface {
	SumNextDays(tenantID uuid.UUID, pair Pair, days int) (float64, bool, error)
}

// StockoutDetector flags pairs whose shrinkage-adjusted available
// inventory will not cover forecast demand over the horizon.
type StockoutDetector struct {
	inventory   StockoutInventory
	forecasts   StockoutForecasts
	horizonDays int
}

// NewStockoutDetector constructs a StockoutDetector over the default
// 7-day horizon.
func NewStockoutDetector(inventory StockoutInventory, forecasts StockoutForecasts) *StockoutDetector {
	return &StockoutDetector{inventory: inventory, forecasts: forecasts, horizonDays: DefaultStockoutHorizonDays}
}

// Name implements Detector.
func (d *StockoutDetector) Name() string { return string(domain.AlertStockoutPredicted) }

// Detect implements Detector.
func (d *StockoutDetector) Detect(tenantID uuid.UUID) ([]Candidate, error) {
	pairs, err := d.inventory.ActivePairs(tenantID)
	if err != nil {
		return nil, fmt.Errorf("alerts: stockout active pairs: %w", err)
	}

	var candidates []Candidate
	for _, pair := range pairs {
		available, ok, err := d.inventory.Available(tenantID, pair)
		if err != nil {
			return nil, fmt.Errorf("alerts: stockout available store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok {
			continue
		}

		demand, ok, err := d.forecasts.SumNextDays(tenantID, pair, d.horizonDays)
		if err != nil {
			return nil, fmt.Errorf("alerts: stockout demand store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok || available >= demand {
			continue
		}

		avgDaily := demand / float64(d.horizonDays)
		daysOfSupply := float64(d.horizonDays)
		if avgDaily > 0 {
			daysOfSupply = available / avgDaily
		}

		candidates = append(candidates, Candidate{
			StoreID:   pair.StoreID,
			ProductID: pair.ProductID,
			Type:      domain.AlertStockoutPredicted,
			Severity:  stockoutSeverity(daysOfSupply),
			Metadata: map[string]any{
				"current_stock":      available,
				"forecast_demand_7d": demand,
				"days_of_supply":     daysOfSupply,
			},
		})
	}
	return candidates, nil
}

func stockoutSeverity(daysOfSupply float64) domain.AlertSeverity {
	switch {
	case daysOfSupply <= 1:
		return domain.SeverityCritical
	case daysOfSupply <= 3:
		return domain.SeverityHigh
	case daysOfSupply <= 5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
