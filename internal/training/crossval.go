package training

import "fmt"

// RegressorFactory constructs a fresh, unfitted Regressor — CrossValidate
// needs one per fold so earlier folds' fitted state never leaks into
// later ones.
type RegressorFactory func() Regressor

// CrossValidate runs a 5-fold (or nFolds, if given) time-series split
// over X/y: fold k trains on every row before its validation window and
// validates on the window itself, so no fold ever trains on
// lookahead data. Returns
// the per-fold metrics and their simple average.
func CrossValidate(X [][]float64, y []float64, newRegressor RegressorFactory, nFolds int) ([]FoldMetrics, FoldMetrics, error) {
	if nFolds <= 0 {
		nFolds = 5
	}
	if len(X) != len(y) {
		return nil, FoldMetrics{}, fmt.Errorf("training: CrossValidate got %d feature rows but %d labels", len(X), len(y))
	}
	// Need at least nFolds+1 rows so every fold has both a non-empty
	// training prefix and a non-empty validation window.
	if len(y) < nFolds+1 {
		return nil, FoldMetrics{}, fmt.Errorf("training: CrossValidate needs at least %d rows for %d folds, got %d", nFolds+1, nFolds, len(y))
	}

	foldSize := len(y) / (nFolds + 1)
	if foldSize == 0 {
		foldSize = 1
	}

	var folds []FoldMetrics
	for k := 1; k <= nFolds; k++ {
		trainEnd := foldSize * k
		valEnd := trainEnd + foldSize
		if k == nFolds {
			valEnd = len(y) // last fold absorbs any remainder
		}
		if trainEnd == 0 || trainEnd >= len(y) || valEnd <= trainEnd {
			continue
		}

		trainX, trainY := X[:trainEnd], y[:trainEnd]
		valX, valY := X[trainEnd:valEnd], y[trainEnd:valEnd]

		r := newRegressor()
		if err := r.Fit(trainX, trainY); err != nil {
			return nil, FoldMetrics{}, fmt.Errorf("training: CrossValidate fold %d fit: %w", k, err)
		}
		preds, err := r.Predict(valX)
		if err != nil {
			return nil, FoldMetrics{}, fmt.Errorf("training: CrossValidate fold %d predict: %w", k, err)
		}
		m, err := Evaluate(preds, valY)
		if err != nil {
			return nil, FoldMetrics{}, fmt.Errorf("training: CrossValidate fold %d evaluate: %w", k, err)
		}
		folds = append(folds, m)
	}

	if len(folds) == 0 {
		return nil, FoldMetrics{}, fmt.Errorf("training: CrossValidate produced no usable folds")
	}

	var avg FoldMetrics
	for _, f := range folds {
		avg.MAE += f.MAE
		avg.MAPE += f.MAPE
		avg.Coverage += f.Coverage
	}
	n := float64(len(folds))
	avg.MAE /= n
	avg.MAPE /= n
	avg.Coverage /= n

	return folds, avg, nil
}
