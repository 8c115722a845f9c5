// Package training implements the model-fitting contract: a small
// `Regressor` interface with two reference implementations (a
// from-scratch gradient-boosted-trees regressor
// and an EWMA baseline), plus the time-series cross-validation used to
// produce the MAE/MAPE/coverage metrics that feed the arena's
// promotion gate.
package training

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Prediction is one row's point forecast plus its 90%-interval
// bounds, matching the Array[n,3] (p10/p50/p90) shape.
type Prediction struct {
	P10 float64
	P50 float64
	P90 float64
}

// Regressor is the capability every model implementation in the
// arena must satisfy: fit a feature matrix/label vector, then predict
// point-plus-interval forecasts for new rows.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]Prediction, error)
}

// Combine blends the P50s and quantile bounds of several regressors'
// predictions under per-regressor weights.F's
// ensemble rule ("weights in metadata combine their p50s and their
// quantile bounds"). All inputs must have equal length and weights
// must sum to a positive number; weights are normalized internally.
func Combine(predictions [][]Prediction, weights []float64) ([]Prediction, error) {
	if len(predictions) == 0 {
		return nil, fmt.Errorf("training: Combine requires at least one prediction set")
	}
	if len(predictions) != len(weights) {
		return nil, fmt.Errorf("training: Combine got %d prediction sets but %d weights", len(predictions), len(weights))
	}
	n := len(predictions[0])
	for i, p := range predictions {
		if len(p) != n {
			return nil, fmt.Errorf("training: Combine prediction set %d has length %d, want %d", i, len(p), n)
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("training: Combine weights must sum to a positive number")
	}

	out := make([]Prediction, n)
	for row := 0; row < n; row++ {
		var p10, p50, p90 float64
		for i, w := range weights {
			share := w / total
			p10 += share * predictions[i][row].P10
			p50 += share * predictions[i][row].P50
			p90 += share * predictions[i][row].P90
		}
		out[row] = Prediction{P10: p10, P50: p50, P90: p90}
	}
	return out, nil
}

// FoldMetrics is one cross-validation/backtest window's error summary.
type FoldMetrics struct {
	MAE      float64
	MAPE     float64 // excludes rows where the actual is 0
	Coverage float64 // fraction of actuals falling within [P10, P90]
}

// Evaluate computes FoldMetrics for a set of predictions against
// actuals.F's exclusion/coverage rules.
func Evaluate(predictions []Prediction, actuals []float64) (FoldMetrics, error) {
	if len(predictions) != len(actuals) {
		return FoldMetrics{}, fmt.Errorf("training: Evaluate got %d predictions but %d actuals", len(predictions), len(actuals))
	}
	if len(actuals) == 0 {
		return FoldMetrics{}, fmt.Errorf("training: Evaluate requires at least one row")
	}

	var absErrSum float64
	var mapeSum float64
	var mapeCount int
	var withinCount int

	for i, actual := range actuals {
		p := predictions[i]
		absErrSum += absFloat(actual - p.P50)
		if actual != 0 {
			mapeSum += absFloat(actual-p.P50) / absFloat(actual)
			mapeCount++
		}
		if actual >= p.P10 && actual <= p.P90 {
			withinCount++
		}
	}

	m := FoldMetrics{
		MAE:      absErrSum / float64(len(actuals)),
		Coverage: float64(withinCount) / float64(len(actuals)),
	}
	if mapeCount > 0 {
		m.MAPE = mapeSum / float64(mapeCount)
	}
	return m, nil
}

// residualQuantileBounds computes the [p10, p90] offsets to add to a
// point forecast from a training residual sample, using gonum/stat's
// empirical quantile estimator for sample statistics.
func residualQuantileBounds(residuals []float64) (lower, upper float64) {
	if len(residuals) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), residuals...)
	sort.Float64s(sorted)
	lower = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	upper = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return lower, upper
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func meanFloat(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
