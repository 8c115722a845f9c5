package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticLinear(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		X[i] = []float64{x}
		y[i] = 2*x + 10
	}
	return X, y
}

func TestGradientBoost_FitPredict_TracksLinearTrend(t *testing.T) {
	X, y := syntheticLinear(60)
	gb := NewGradientBoost(GradientBoostConfig{NEstimators: 50, LearningRate: 0.2})
	require.NoError(t, gb.Fit(X, y))

	preds, err := gb.Predict([][]float64{{10}, {50}})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.InDelta(t, 30, preds[0].P50, 5)
	assert.InDelta(t, 110, preds[1].P50, 5)
	assert.LessOrEqual(t, preds[0].P10, preds[0].P50)
	assert.GreaterOrEqual(t, preds[0].P90, preds[0].P50)
}

func TestGradientBoost_Predict_BeforeFitErrors(t *testing.T) {
	gb := NewGradientBoost(GradientBoostConfig{})
	_, err := gb.Predict([][]float64{{1}})
	assert.Error(t, err)
}

func TestGradientBoost_Predict_NeverNegative(t *testing.T) {
	X, y := syntheticLinear(30)
	// Shift series negative to exercise the non-negativity clip.
	for i := range y {
		y[i] -= 1000
	}
	gb := NewGradientBoost(GradientBoostConfig{})
	require.NoError(t, gb.Fit(X, y))
	preds, err := gb.Predict(X)
	require.NoError(t, err)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p.P10, 0.0)
		assert.GreaterOrEqual(t, p.P50, 0.0)
		assert.GreaterOrEqual(t, p.P90, 0.0)
	}
}

func TestEWMA_FitPredict_TracksLevel(t *testing.T) {
	y := []float64{10, 10, 10, 10, 20, 20, 20, 20, 20, 20}
	X := make([][]float64, len(y))
	e := NewEWMA(EWMAConfig{Alpha: 0.5})
	require.NoError(t, e.Fit(X, y))

	preds, err := e.Predict(make([][]float64, 1))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Greater(t, preds[0].P50, 15.0, "level must have adapted toward the new regime")
}

func TestEWMA_Fit_EmptySeriesErrors(t *testing.T) {
	e := NewEWMA(EWMAConfig{})
	assert.Error(t, e.Fit(nil, nil))
}

func TestCombine_WeightsSumToOneAndBlendsP50(t *testing.T) {
	a := []Prediction{{P10: 8, P50: 10, P90: 12}}
	b := []Prediction{{P10: 18, P50: 20, P90: 22}}
	out, err := Combine([][]Prediction{a, b}, []float64{1, 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 15, out[0].P50, 0.001)
}

func TestCombine_MismatchedWeightsErrors(t *testing.T) {
	a := []Prediction{{P50: 1}}
	_, err := Combine([][]Prediction{a}, []float64{1, 2})
	assert.Error(t, err)
}

func TestEvaluate_MAPEExcludesZeroActuals(t *testing.T) {
	preds := []Prediction{{P50: 5}, {P50: 0}, {P50: 8}}
	actuals := []float64{10, 0, 10}
	m, err := Evaluate(preds, actuals)
	require.NoError(t, err)
	// Only rows 0 and 2 contribute to MAPE: |10-5|/10=0.5, |10-8|/10=0.2 -> avg 0.35
	assert.InDelta(t, 0.35, m.MAPE, 0.001)
}

func TestEvaluate_CoverageCountsWithinBounds(t *testing.T) {
	preds := []Prediction{{P10: 1, P50: 5, P90: 9}, {P10: 1, P50: 5, P90: 9}}
	actuals := []float64{5, 100}
	m, err := Evaluate(preds, actuals)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Coverage, 0.001)
}

func TestCrossValidate_FiveFoldTimeSeriesSplit(t *testing.T) {
	X, y := syntheticLinear(60)
	folds, avg, err := CrossValidate(X, y, func() Regressor {
		return NewGradientBoost(GradientBoostConfig{NEstimators: 20, LearningRate: 0.2})
	}, 5)
	require.NoError(t, err)
	assert.Len(t, folds, 5)
	assert.GreaterOrEqual(t, avg.Coverage, 0.0)
	assert.LessOrEqual(t, avg.Coverage, 1.0)
}

func TestCrossValidate_TooFewRowsErrors(t *testing.T) {
	X, y := syntheticLinear(3)
	_, _, err := CrossValidate(X, y, func() Regressor { return NewEWMA(EWMAConfig{}) }, 5)
	assert.Error(t, err)
}
