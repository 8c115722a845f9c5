package optimizer

import (
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel/internal/apperr"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultVendorOnTimeRate = 0.95

// SourcingResolver implements Sourcing: a product's highest-priority
// sourcing rule (optionally store-scoped) wins; absent any rule, it
// falls back to the product's supplier lead time directly.
type SourcingResolver struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSourcingResolver constructs a SourcingResolver over db.
func NewSourcingResolver(db *database.DB, log zerolog.Logger) *SourcingResolver {
	return &SourcingResolver{db: db.Conn(), log: log.With().Str("component", "optimizer.sourcing").Logger()}
}

// Resolve implements Sourcing.
func (s *SourcingResolver) Resolve(tenantID, storeID, productID uuid.UUID) (SourcingInfo, error) {
	rule, ok, err := s.bestRule(tenantID, storeID, productID)
	if err != nil {
		return SourcingInfo{}, err
	}
	if ok {
		reliability := defaultVendorOnTimeRate
		name := string(rule.Source)
		if rule.Source == domain.SourceVendorDirect {
			if supplier, found, err := s.supplierFor(tenantID, productID); err == nil && found {
				reliability = supplier.OnTimeRate
				name = supplier.Name
			}
		}
		return SourcingInfo{
			SourceType:       rule.Source,
			SourceName:       name,
			LeadTimeMeanDays: rule.LeadTimeMeanDays,
			LeadTimeVariance: rule.LeadTimeVarianceDays,
			MinOrderQty:      rule.MinOrderQty,
			CostPerOrder:     rule.CostPerOrder,
			VendorOnTimeRate: reliability,
		}, nil
	}

	supplier, found, err := s.supplierFor(tenantID, productID)
	if err != nil {
		return SourcingInfo{}, err
	}
	if !found {
		return SourcingInfo{}, apperr.New(apperr.KindDataUnavailable, "optimizer.Resolve", nil).WithResource(productID.String())
	}
	return SourcingInfo{
		SourceType:       domain.SourceVendorDirect,
		SourceName:       supplier.Name,
		LeadTimeMeanDays: supplier.LeadTimeMeanDays,
		LeadTimeVariance: supplier.LeadTimeVarianceDays,
		MinOrderQty:      1,
		CostPerOrder:     supplier.CostPerOrder,
		VendorOnTimeRate: supplier.OnTimeRate,
	}, nil
}

// bestRule returns the highest-priority (lowest Priority value)
// sourcing rule applicable to productID, preferring a store-scoped
// rule over a tenant-wide one at the same priority.
func (s *SourcingResolver) bestRule(tenantID, storeID, productID uuid.UUID) (domain.ProductSourcingRule, bool, error) {
	rows, err := s.db.Query(`
		SELECT id, tenant_id, product_id, store_id, priority, source,
		       lead_time_mean_days, lead_time_variance_days, min_order_qty, cost_per_order
		FROM product_sourcing_rules
		WHERE tenant_id = ? AND product_id = ? AND (store_id = '' OR store_id = ?)
		ORDER BY priority ASC, (store_id != '') DESC
		LIMIT 1`,
		tenantID.String(), productID.String(), storeID.String(),
	)
	if err != nil {
		return domain.ProductSourcingRule{}, false, fmt.Errorf("optimizer: query sourcing rules: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.ProductSourcingRule{}, false, rows.Err()
	}

	var rule domain.ProductSourcingRule
	var id, tenant, product, storeScoped string
	var source string
	err = rows.Scan(&id, &tenant, &product, &storeScoped, &rule.Priority, &source,
		&rule.LeadTimeMeanDays, &rule.LeadTimeVarianceDays, &rule.MinOrderQty, &rule.CostPerOrder)
	if err != nil {
		return domain.ProductSourcingRule{}, false, fmt.Errorf("optimizer: scan sourcing rule: %w", err)
	}

	rule.ID, err = uuid.Parse(id)
	if err != nil {
		return domain.ProductSourcingRule{}, false, fmt.Errorf("optimizer: parse sourcing rule id: %w", err)
	}
	rule.TenantID, err = uuid.Parse(tenant)
	if err != nil {
		return domain.ProductSourcingRule{}, false, fmt.Errorf("optimizer: parse sourcing rule tenant_id: %w", err)
	}
	rule.ProductID, err = uuid.Parse(product)
	if err != nil {
		return domain.ProductSourcingRule{}, false, fmt.Errorf("optimizer: parse sourcing rule product_id: %w", err)
	}
	rule.Source = domain.SourceType(source)
	if storeScoped != "" {
		scopedID, err := uuid.Parse(storeScoped)
		if err != nil {
			return domain.ProductSourcingRule{}, false, fmt.Errorf("optimizer: parse sourcing rule store_id: %w", err)
		}
		rule.StoreID = &scopedID
	}
	return rule, true, nil
}

func (s *SourcingResolver) supplierFor(tenantID, productID uuid.UUID) (domain.Supplier, bool, error) {
	row := s.db.QueryRow(`
		SELECT s.id, s.tenant_id, s.name, s.on_time_rate, s.lead_time_mean_days,
		       s.lead_time_variance_days, s.distance_km, s.cost_per_order,
		       s.payment_terms_days, s.minimum_order_value
		FROM suppliers s
		JOIN products p ON p.supplier_id = s.id
		WHERE p.tenant_id = ? AND p.id = ?`,
		tenantID.String(), productID.String(),
	)

	var supplier domain.Supplier
	var id, tenant string
	err := row.Scan(&id, &tenant, &supplier.Name, &supplier.OnTimeRate, &supplier.LeadTimeMeanDays,
		&supplier.LeadTimeVarianceDays, &supplier.DistanceKM, &supplier.CostPerOrder,
		&supplier.PaymentTermsDays, &supplier.MinimumOrderValue)
	if err == sql.ErrNoRows {
		return domain.Supplier{}, false, nil
	}
	if err != nil {
		return domain.Supplier{}, false, fmt.Errorf("optimizer: query supplier: %w", err)
	}

	supplier.ID, err = uuid.Parse(id)
	if err != nil {
		return domain.Supplier{}, false, fmt.Errorf("optimizer: parse supplier id: %w", err)
	}
	supplier.TenantID, err = uuid.Parse(tenant)
	if err != nil {
		return domain.Supplier{}, false, fmt.Errorf("optimizer: parse supplier tenant_id: %w", err)
	}
	return supplier, true, nil
}
