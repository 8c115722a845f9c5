package alerts

import (
	"fmt"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// GhostStockLookbackDays is the trailing window the ghost-stock
// detector checks for persistent actual/forecast divergence.
const GhostStockLookbackDays = 7

// GhostStockMinLowDays is the minimum number of low-ratio days within
// the lookback window required to flag a pair.
const GhostStockMinLowDays = 3

// GhostStockRatioThreshold is the actual/forecast ratio below which a
// day counts as a "low" day.
const GhostStockRatioThreshold = 0.3

// DailyActualVsForecast is one day's observed actual sales against
// that day's forecast demand for a pair.
type DailyActualVsForecast struct {
	Actual   float64
	Forecast float64
}

// GhostStockSource supplies a pair's on-hand quantity, unit price, and
// trailing actual-vs-forecast days.
type GhostStockSource interface {
	Pairs(tenantID uuid.UUID) ([]Pair, error)
	OnHand(tenantID uuid.UUID, pair Pair) (qty float64, unitPrice float64, ok bool, err error)
	TrailingDays(tenantID uuid.UUID, pair Pair, lookbackDays int) ([]DailyActualVsForecast, error)
}

// GhostStockDetector flags pairs carrying on-hand inventory that the
// POS keeps failing to sell through relative to forecast — a
// candidate sign of phantom/miscounted stock.
type GhostStockDetector struct {
	source GhostStockSource
}

// NewGhostStockDetector constructs a GhostStockDetector.
func NewGhostStockDetector(source GhostStockSource) *GhostStockDetector {
	return &GhostStockDetector{source: source}
}

// Name implements Detector.
func (d *GhostStockDetector) Name() string { return "ghost_stock" }

// Detect implements Detector.
func (d *GhostStockDetector) Detect(tenantID uuid.UUID) ([]Candidate, error) {
	pairs, err := d.source.Pairs(tenantID)
	if err != nil {
		return nil, fmt.Errorf("alerts: ghost stock pairs: %w", err)
	}

	var candidates []Candidate
	for _, pair := range pairs {
		qty, unitPrice, ok, err := d.source.OnHand(tenantID, pair)
		if err != nil {
			return nil, fmt.Errorf("alerts: ghost stock on-hand store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok || qty <= 0 {
			continue
		}

		days, err := d.source.TrailingDays(tenantID, pair, GhostStockLookbackDays)
		if err != nil {
			return nil, fmt.Errorf("alerts: ghost stock trailing days store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if len(days) == 0 {
			continue
		}

		lowDays := 0
		for _, day := range days {
			if day.Forecast <= 0 {
				continue
			}
			if day.Actual/day.Forecast < GhostStockRatioThreshold {
				lowDays++
			}
		}
		if lowDays < GhostStockMinLowDays {
			continue
		}

		candidates = append(candidates, Candidate{
			StoreID:   pair.StoreID,
			ProductID: pair.ProductID,
			Type:      domain.AlertAnomalyDetected,
			Severity:  domain.SeverityMedium,
			Metadata: map[string]any{
				"anomaly_kind": "ghost_stock",
				"ghost_value":  qty * unitPrice,
				"confidence":   float64(lowDays) / float64(len(days)),
				"low_days":     lowDays,
				"lookback":     len(days),
			},
		})
	}
	return candidates, nil
}
