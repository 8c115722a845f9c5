package alerts

import (
	"fmt"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
)

// ReorderInventory answers which pairs carry inventory and their
// current shrinkage-adjusted available quantity.
type ReorderInventory interface {
	ActivePairs(tenantID uuid.UUID) ([]Pair, error)
	Available(tenantID uuid.UUID, pair Pair) (float64, bool, error)
}

// ReorderPointSource looks up a pair's current reorder point. Its
// shape matches optimizer.ReorderRepository.Get, so the optimizer's
// own SQL-backed repository can be passed in directly.
type ReorderPointSource interface {
	Get(tenantID, storeID, productID uuid.UUID) (domain.ReorderPoint, bool, error)
}

// PlanogramMembership answers whether a product is active in a
// store's planogram.
type PlanogramMembership interface {
	IsActive(tenantID uuid.UUID, pair Pair) (bool, error)
}

// ReorderDetector flags pairs whose available inventory has fallen to
// or below their reorder point, for planogram-active products only.
type ReorderDetector struct {
	inventory ReorderInventory
	points    ReorderPointSource
	planogram PlanogramMembership
}

// NewReorderDetector constructs a ReorderDetector.
func NewReorderDetector(inventory ReorderInventory, points ReorderPointSource, planogram PlanogramMembership) *ReorderDetector {
	return &ReorderDetector{inventory: inventory, points: points, planogram: planogram}
}

// Name implements Detector.
func (d *ReorderDetector) Name() string { return string(domain.AlertReorderRecommended) }

// Detect implements Detector.
func (d *ReorderDetector) Detect(tenantID uuid.UUID) ([]Candidate, error) {
	pairs, err := d.inventory.ActivePairs(tenantID)
	if err != nil {
		return nil, fmt.Errorf("alerts: reorder active pairs: %w", err)
	}

	var candidates []Candidate
	for _, pair := range pairs {
		available, ok, err := d.inventory.Available(tenantID, pair)
		if err != nil {
			return nil, fmt.Errorf("alerts: reorder available store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok {
			continue
		}

		rp, ok, err := d.points.Get(tenantID, pair.StoreID, pair.ProductID)
		if err != nil {
			return nil, fmt.Errorf("alerts: reorder point store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok || available > float64(rp.ROP) {
			continue
		}

		active, err := d.planogram.IsActive(tenantID, pair)
		if err != nil {
			return nil, fmt.Errorf("alerts: planogram membership store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !active {
			continue
		}

		severity := domain.SeverityMedium
		if available <= float64(rp.SafetyStock) {
			severity = domain.SeverityHigh
		}

		candidates = append(candidates, Candidate{
			StoreID:   pair.StoreID,
			ProductID: pair.ProductID,
			Type:      domain.AlertReorderRecommended,
			Severity:  severity,
			Metadata: map[string]any{
				"current_stock": available,
				"rop":           rp.ROP,
				"safety_stock":  rp.SafetyStock,
				"suggested_qty": rp.EOQ,
			},
		})
	}
	return candidates, nil
}
