package training

import "sort"

// Stump is one greedy axis-aligned split: rows with X[Feature] <=
// Threshold predict Left, the rest predict Right. Trees in the
// ensemble are shallow, built as a chain of stumps rather than a full
// binary tree, which is sufficient for the tabular demand-forecasting
// feature set and keeps the implementation legible without a
// third-party tree library (none of the example repos carry one).
// Fields are exported so a fitted GradientBoost's ensemble can be
// persisted by internal/storage without a bespoke encoder.
type Stump struct {
	Feature   int
	Threshold float64
	Left      float64
	Right     float64
}

func (s Stump) predict(row []float64) float64 {
	if row[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// fitStump finds the (feature, threshold) split of X that minimizes
// the sum of squared residuals of y, predicting each side's mean.
// Returns the zero stump if X has no rows or no columns.
func fitStump(X [][]float64, y []float64) Stump {
	if len(X) == 0 || len(X[0]) == 0 {
		return Stump{}
	}
	nFeatures := len(X[0])

	best := Stump{Left: meanFloat(y), Right: meanFloat(y)}
	bestSSE := sse(y, best.Left) // no-split baseline

	for f := 0; f < nFeatures; f++ {
		thresholds := candidateThresholds(X, f)
		for _, t := range thresholds {
			var leftY, rightY []float64
			for i, row := range X {
				if row[f] <= t {
					leftY = append(leftY, y[i])
				} else {
					rightY = append(rightY, y[i])
				}
			}
			if len(leftY) == 0 || len(rightY) == 0 {
				continue
			}
			leftMean := meanFloat(leftY)
			rightMean := meanFloat(rightY)
			candidateSSE := sse(leftY, leftMean) + sse(rightY, rightMean)
			if candidateSSE < bestSSE {
				bestSSE = candidateSSE
				best = Stump{Feature: f, Threshold: t, Left: leftMean, Right: rightMean}
			}
		}
	}
	return best
}

// candidateThresholds samples the distinct values of column f as
// split candidates, capped to keep fitting time bounded on wide
// feature tables.
func candidateThresholds(X [][]float64, f int) []float64 {
	const maxCandidates = 32
	seen := make(map[float64]bool)
	var values []float64
	for _, row := range X {
		v := row[f]
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	if len(values) <= 1 {
		return nil
	}
	if len(values) > maxCandidates {
		// Evenly sample across the sorted range instead of using every
		// distinct value.
		sort.Float64s(values)
		step := float64(len(values)-1) / float64(maxCandidates-1)
		sampled := make([]float64, 0, maxCandidates)
		for i := 0; i < maxCandidates; i++ {
			idx := int(float64(i) * step)
			if idx >= len(values) {
				idx = len(values) - 1
			}
			sampled = append(sampled, values[idx])
		}
		return sampled
	}
	return values
}

func sse(ys []float64, mean float64) float64 {
	var total float64
	for _, y := range ys {
		d := y - mean
		total += d * d
	}
	return total
}
