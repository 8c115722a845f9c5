// Package contract normalizes heterogeneous ingestion rows into the
// canonical schema every downstream component (features, forecast,
// alerts) depends on, and scores the normalized batch for data quality.
package contract

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/apperr"
)

// ProductGrain marks whether a source reports at per-product or
// store-level-only granularity (Rossmann-style store datasets).
type ProductGrain string

const (
	GrainProduct        ProductGrain = "product_level"
	GrainStoreLevelOnly ProductGrain = "store_level_only"
)

// storeLevelOnlyProductID is the sentinel product identifier assigned to
// rows from a grain that reports no per-product breakdown.
const storeLevelOnlyProductID = "all"

// RawRow is the loosely-typed shape adapters and importers hand to the
// contract before it is normalized. Date, StoreID and Quantity are
// always required, and ProductID is required unless the grain is
// store-level-only; everything else may be absent.
type RawRow struct {
	Date           string
	StoreID        string
	ProductID      string
	Quantity       string
	Category       string
	IsPromotional  bool
	IsHoliday      bool
	DatasetID      string
	CountryCode    string
	Frequency      string
	StoreLevelOnly bool
}

// Row is a single canonicalized record: date, store_id, product_id,
// quantity, category, is_promotional, is_holiday, dataset_id,
// country_code, frequency, product_grain, returns_adjustment,
// is_return_week.
type Row struct {
	Date              time.Time
	StoreID           string
	ProductID         string
	Quantity          float64
	Category          string
	IsPromotional     bool
	IsHoliday         bool
	DatasetID         string
	CountryCode       string
	Frequency         string
	ProductGrain      ProductGrain
	ReturnsAdjustment float64
	IsReturnWeek      bool
}

// Thresholds gates onboarding on the DQ report produced by Canonicalize.
// Zero-value Thresholds disables every gate (useful for replay/backtest
// paths that intentionally tolerate messier historical data).
type Thresholds struct {
	MaxDuplicateRate        float64
	MaxRequiredNullRate     float64
	MinDateParseSuccessRate float64
	MinQuantityParseRate    float64
	MaxFutureDateOffsetDays int
}

// DefaultThresholds mirrors the onboarding gate used for live tenant
// ingestion: a handful of malformed rows are tolerated, a systemically
// broken feed is not.
var DefaultThresholds = Thresholds{
	MaxDuplicateRate:        0.02,
	MaxRequiredNullRate:     0.01,
	MinDateParseSuccessRate: 0.98,
	MinQuantityParseRate:    0.98,
	MaxFutureDateOffsetDays: 1,
}

// Report summarizes the data-quality of one canonicalization pass.
type Report struct {
	RowsIn                  int
	RowsAccepted            int
	RowsRejected            int
	DateParseSuccessRate    float64
	RequiredNullRate        float64
	DuplicateRate           float64
	QuantityParseRate       float64
	MaxFutureDateOffsetDays int
	HistorySpanDays         int
	StoreRefMissRate        float64
	ProductRefMissRate      float64
	Passed                  bool
	Failures                []string
}

// ReferenceChecker answers whether a store or product id is known to
// the tenant's catalog, used to compute the reference-miss rate in the
// DQ report. A nil checker skips the check (rate reported as 0).
type ReferenceChecker interface {
	HasStore(storeID string) bool
	HasProduct(productID string) bool
}

// Canonicalizer normalizes RawRow batches into Row batches against a
// fixed Thresholds policy.
type Canonicalizer struct {
	thresholds Thresholds
	refs       ReferenceChecker
	now        func() time.Time
}

// New builds a Canonicalizer. A zero-value refs disables reference-miss
// scoring.
func New(thresholds Thresholds, refs ReferenceChecker) *Canonicalizer {
	return &Canonicalizer{thresholds: thresholds, refs: refs, now: func() time.Time { return time.Now().UTC() }}
}

// rejection records why a raw row failed to canonicalize, without
// halting the rest of the batch.
type rejection struct {
	row    RawRow
	reason string
}

// Canonicalize normalizes every row in rawRows, producing the accepted
// Row set and a DQ Report. It never returns an error for per-row
// problems; a required-column or unparseable-field failure just drops
// that row and is reflected in the report. It returns a non-nil error
// only if the whole batch is structurally unusable (empty input).
func (c *Canonicalizer) Canonicalize(op string, rawRows []RawRow) ([]Row, Report, error) {
	if len(rawRows) == 0 {
		return nil, Report{}, apperr.New(apperr.KindContractViolation, op, fmt.Errorf("empty input batch"))
	}

	var (
		rows             []Row
		rejections       []rejection
		dateParseOK      int
		quantityParseOK  int
		requiredNullRows int
		maxFutureOffset  int
		minDate, maxDate time.Time
		seen             = make(map[string]int, len(rawRows))
		storeMiss        int
		productMiss      int
	)

	for _, raw := range rawRows {
		row, reason := c.canonicalizeOne(raw)
		if reason != "" {
			rejections = append(rejections, rejection{row: raw, reason: reason})
			if raw.Date == "" || raw.StoreID == "" || raw.Quantity == "" {
				requiredNullRows++
			}
			continue
		}
		dateParseOK++
		quantityParseOK++

		key := fmt.Sprintf("%s|%s|%s", row.Date.Format("2006-01-02"), row.StoreID, row.ProductID)
		seen[key]++

		if minDate.IsZero() || row.Date.Before(minDate) {
			minDate = row.Date
		}
		if row.Date.After(maxDate) {
			maxDate = row.Date
		}
		if offset := int(row.Date.Sub(c.now()).Hours() / 24); offset > maxFutureOffset {
			maxFutureOffset = offset
		}
		if c.refs != nil {
			if !c.refs.HasStore(row.StoreID) {
				storeMiss++
			}
			if row.ProductGrain == GrainProduct && !c.refs.HasProduct(row.ProductID) {
				productMiss++
			}
		}

		rows = append(rows, row)
	}

	duplicates := 0
	for _, n := range seen {
		if n > 1 {
			duplicates += n - 1
		}
	}

	report := Report{
		RowsIn:                  len(rawRows),
		RowsAccepted:            len(rows),
		RowsRejected:            len(rejections),
		MaxFutureDateOffsetDays: maxFutureOffset,
	}
	if len(rawRows) > 0 {
		report.DateParseSuccessRate = float64(dateParseOK) / float64(len(rawRows))
		report.QuantityParseRate = float64(quantityParseOK) / float64(len(rawRows))
		report.RequiredNullRate = float64(requiredNullRows) / float64(len(rawRows))
	}
	if len(rows) > 0 {
		report.DuplicateRate = float64(duplicates) / float64(len(rows))
		report.StoreRefMissRate = float64(storeMiss) / float64(len(rows))
		if productRows := countProductGrain(rows); productRows > 0 {
			report.ProductRefMissRate = float64(productMiss) / float64(productRows)
		}
	}
	if !minDate.IsZero() {
		report.HistorySpanDays = int(maxDate.Sub(minDate).Hours()/24) + 1
	}

	report.Passed, report.Failures = c.gate(report)

	return rows, report, nil
}

func countProductGrain(rows []Row) int {
	n := 0
	for _, r := range rows {
		if r.ProductGrain == GrainProduct {
			n++
		}
	}
	return n
}

// gate evaluates the report against the configured Thresholds. An
// all-zero Thresholds value disables every check (used by replay/
// backtest ingestion which tolerates messier historical feeds).
func (c *Canonicalizer) gate(r Report) (bool, []string) {
	var failures []string
	t := c.thresholds

	if t.MaxDuplicateRate > 0 && r.DuplicateRate > t.MaxDuplicateRate {
		failures = append(failures, fmt.Sprintf("duplicate_rate %.4f exceeds threshold %.4f", r.DuplicateRate, t.MaxDuplicateRate))
	}
	if t.MaxRequiredNullRate > 0 && r.RequiredNullRate > t.MaxRequiredNullRate {
		failures = append(failures, fmt.Sprintf("required_null_rate %.4f exceeds threshold %.4f", r.RequiredNullRate, t.MaxRequiredNullRate))
	}
	if t.MinDateParseSuccessRate > 0 && r.DateParseSuccessRate < t.MinDateParseSuccessRate {
		failures = append(failures, fmt.Sprintf("date_parse_success_rate %.4f below threshold %.4f", r.DateParseSuccessRate, t.MinDateParseSuccessRate))
	}
	if t.MinQuantityParseRate > 0 && r.QuantityParseRate < t.MinQuantityParseRate {
		failures = append(failures, fmt.Sprintf("quantity_parse_rate %.4f below threshold %.4f", r.QuantityParseRate, t.MinQuantityParseRate))
	}
	if t.MaxFutureDateOffsetDays > 0 && r.MaxFutureDateOffsetDays > t.MaxFutureDateOffsetDays {
		failures = append(failures, fmt.Sprintf("max_future_date_offset_days %d exceeds threshold %d", r.MaxFutureDateOffsetDays, t.MaxFutureDateOffsetDays))
	}

	return len(failures) == 0, failures
}

// canonicalizeOne applies the canonical-contract normalization rules
// to a single raw row. A non-empty reason means the row is rejected.
func (c *Canonicalizer) canonicalizeOne(raw RawRow) (Row, string) {
	if raw.Date == "" || raw.StoreID == "" || raw.Quantity == "" {
		return Row{}, "missing required field"
	}

	date, err := parseDate(raw.Date)
	if err != nil {
		return Row{}, fmt.Sprintf("unparseable date %q: %v", raw.Date, err)
	}

	qty, err := strconv.ParseFloat(strings.TrimSpace(raw.Quantity), 64)
	if err != nil {
		return Row{}, fmt.Sprintf("unparseable quantity %q: %v", raw.Quantity, err)
	}

	row := Row{
		Date:          date,
		StoreID:       raw.StoreID,
		Category:      raw.Category,
		IsPromotional: raw.IsPromotional,
		IsHoliday:     raw.IsHoliday,
		DatasetID:     raw.DatasetID,
		CountryCode:   raw.CountryCode,
		Frequency:     raw.Frequency,
	}

	if raw.StoreLevelOnly {
		row.ProductGrain = GrainStoreLevelOnly
		row.ProductID = storeLevelOnlyProductID
	} else {
		row.ProductGrain = GrainProduct
		row.ProductID = raw.ProductID
		if row.ProductID == "" {
			return Row{}, "missing required field"
		}
	}

	// Negative quantity on a weekly-sales source is a return; it routes
	// to returns_adjustment and the positive clip becomes the target.
	if qty < 0 && strings.EqualFold(row.Frequency, "weekly") {
		row.ReturnsAdjustment = math.Abs(qty)
		row.IsReturnWeek = true
		row.Quantity = 0
	} else {
		row.Quantity = math.Max(0, qty)
		if qty < 0 {
			row.ReturnsAdjustment = math.Abs(qty)
		}
	}

	return row, ""
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006/01/02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
