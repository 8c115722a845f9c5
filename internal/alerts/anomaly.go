package alerts

import (
	"fmt"
	"math"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// FeatureSnapshot is one day's value of the 8 features the anomaly
// detector scores.
type FeatureSnapshot struct {
	Sales7D            float64
	Trend7D            float64
	OnHand             float64
	Price              float64
	DayOfWeek          float64
	Holiday            float64
	Turnover           float64
	PriceVsCategoryAvg float64
}

func (s FeatureSnapshot) values() [8]float64 {
	return [8]float64{s.Sales7D, s.Trend7D, s.OnHand, s.Price, s.DayOfWeek, s.Holiday, s.Turnover, s.PriceVsCategoryAvg}
}

var anomalyFeatureNames = [8]string{
	"sales_7d", "trend_7d", "on_hand", "price", "day_of_week", "holiday", "turnover", "price_vs_category_avg",
}

// MinAnomalyHistory is the minimum number of historical snapshots
// required before a pair's latest snapshot can be scored; below this
// a sample mean/stddev is too unstable to trust.
const MinAnomalyHistory = 5

// AnomalyHistory supplies a pair's historical feature snapshots plus
// its latest snapshot to score against that history.
type AnomalyHistory interface {
	Pairs(tenantID uuid.UUID) ([]Pair, error)
	History(tenantID uuid.UUID, pair Pair) (history []FeatureSnapshot, latest FeatureSnapshot, ok bool, err error)
}

// AnomalyDetector flags pairs whose latest feature snapshot deviates
// from its own historical distribution by an Isolation-Forest-style
// outlier score, approximated here as the largest per-feature
// |z-score| against the pair's own history.
type AnomalyDetector struct {
	source AnomalyHistory
}

// NewAnomalyDetector constructs an AnomalyDetector.
func NewAnomalyDetector(source AnomalyHistory) *AnomalyDetector {
	return &AnomalyDetector{source: source}
}

// Name implements Detector.
func (d *AnomalyDetector) Name() string { return string(domain.AlertAnomalyDetected) }

// Detect implements Detector.
func (d *AnomalyDetector) Detect(tenantID uuid.UUID) ([]Candidate, error) {
	pairs, err := d.source.Pairs(tenantID)
	if err != nil {
		return nil, fmt.Errorf("alerts: anomaly pairs: %w", err)
	}

	var candidates []Candidate
	for _, pair := range pairs {
		history, latest, ok, err := d.source.History(tenantID, pair)
		if err != nil {
			return nil, fmt.Errorf("alerts: anomaly history store=%s product=%s: %w", pair.StoreID, pair.ProductID, err)
		}
		if !ok || len(history) < MinAnomalyHistory {
			continue
		}

		zScores, maxAbsZ, maxFeature := scoreSnapshot(history, latest)
		if maxAbsZ < 2 {
			continue
		}

		candidates = append(candidates, Candidate{
			StoreID:   pair.StoreID,
			ProductID: pair.ProductID,
			Type:      domain.AlertAnomalyDetected,
			Severity:  anomalySeverity(maxAbsZ),
			Metadata: map[string]any{
				"feature_z_scores": zScores,
				"max_z_feature":    maxFeature,
				"max_abs_z":        maxAbsZ,
			},
		})
	}
	return candidates, nil
}

// scoreSnapshot returns the per-feature z-scores of latest against
// history's per-feature mean/stddev, plus the largest |z-score| and
// the name of the feature it belongs to.
func scoreSnapshot(history []FeatureSnapshot, latest FeatureSnapshot) (map[string]float64, float64, string) {
	columns := make([][]float64, 8)
	for _, snap := range history {
		values := snap.values()
		for i, v := range values {
			columns[i] = append(columns[i], v)
		}
	}

	latestValues := latest.values()
	zScores := make(map[string]float64, 8)
	maxAbsZ := 0.0
	maxFeature := ""

	for i, name := range anomalyFeatureNames {
		mean, std := stat.MeanStdDev(columns[i], nil)
		if std == 0 {
			continue
		}
		z := (latestValues[i] - mean) / std
		zScores[name] = z
		if abs := math.Abs(z); abs > maxAbsZ {
			maxAbsZ = abs
			maxFeature = name
		}
	}
	return zScores, maxAbsZ, maxFeature
}

func anomalySeverity(maxAbsZ float64) domain.AlertSeverity {
	switch {
	case maxAbsZ >= 4:
		return domain.SeverityCritical
	case maxAbsZ >= 3:
		return domain.SeverityHigh
	case maxAbsZ >= 2.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
