package training

import "fmt"

// GradientBoostConfig parameterizes GradientBoost.
type GradientBoostConfig struct {
	// NEstimators is the number of boosting rounds (stumps added).
	NEstimators int
	// LearningRate shrinks each round's contribution.
	LearningRate float64
}

// DefaultGradientBoostConfig mirrors common defaults for shallow
// gradient-boosted-trees regressors on small tabular datasets.
func DefaultGradientBoostConfig() GradientBoostConfig {
	return GradientBoostConfig{NEstimators: 100, LearningRate: 0.1}
}

// GradientBoost is a from-scratch gradient-boosted regression-stump
// ensemble: each round fits a stump to the current residuals and adds
// it to the running prediction, scaled by LearningRate. There is no
// pure-Go XGBoost/LightGBM binding in the retrieval pack, so this
// reproduces the algorithm directly rather than reaching for a
// library that doesn't exist in the ecosystem surface available here.
type GradientBoost struct {
	cfg       GradientBoostConfig
	fitted    bool
	baseline  float64
	stumps    []Stump
	residuals []float64 // training residuals, used for interval bounds
}

// GradientBoostState is the persistable snapshot of a fitted
// GradientBoost, exposed so internal/storage can serialize a model
// artifact without reaching into unexported fields.
type GradientBoostState struct {
	Config    GradientBoostConfig
	Baseline  float64
	Stumps    []Stump
	Residuals []float64
}

// State captures g's fitted parameters.
func (g *GradientBoost) State() GradientBoostState {
	return GradientBoostState{Config: g.cfg, Baseline: g.baseline, Stumps: g.stumps, Residuals: g.residuals}
}

// LoadGradientBoost reconstructs a fitted GradientBoost from a
// previously captured State.
func LoadGradientBoost(s GradientBoostState) *GradientBoost {
	return &GradientBoost{cfg: s.Config, baseline: s.Baseline, stumps: s.Stumps, residuals: s.Residuals, fitted: true}
}

// NewGradientBoost constructs a GradientBoost with cfg. A zero-value
// cfg falls back to DefaultGradientBoostConfig.
func NewGradientBoost(cfg GradientBoostConfig) *GradientBoost {
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = DefaultGradientBoostConfig().NEstimators
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultGradientBoostConfig().LearningRate
	}
	return &GradientBoost{cfg: cfg}
}

func (g *GradientBoost) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("training: GradientBoost.Fit requires len(X) == len(y) > 0, got %d/%d", len(X), len(y))
	}

	g.baseline = meanFloat(y)
	g.stumps = g.stumps[:0]

	predictions := make([]float64, len(y))
	for i := range predictions {
		predictions[i] = g.baseline
	}

	for round := 0; round < g.cfg.NEstimators; round++ {
		residuals := make([]float64, len(y))
		for i := range y {
			residuals[i] = y[i] - predictions[i]
		}

		s := fitStump(X, residuals)
		g.stumps = append(g.stumps, s)

		for i, row := range X {
			predictions[i] += g.cfg.LearningRate * s.predict(row)
		}
	}

	g.residuals = make([]float64, len(y))
	for i := range y {
		g.residuals[i] = y[i] - predictions[i]
	}
	g.fitted = true

	return nil
}

func (g *GradientBoost) Predict(X [][]float64) ([]Prediction, error) {
	if !g.fitted {
		return nil, fmt.Errorf("training: GradientBoost.Predict called before Fit")
	}
	lower, upper := residualQuantileBounds(g.residuals)

	out := make([]Prediction, len(X))
	for i, row := range X {
		p50 := g.baseline
		for _, s := range g.stumps {
			p50 += g.cfg.LearningRate * s.predict(row)
		}
		out[i] = Prediction{
			P10: clampNonNegative(p50 + lower),
			P50: clampNonNegative(p50),
			P90: clampNonNegative(p50 + upper),
		}
	}
	return out, nil
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

var _ Regressor = (*GradientBoost)(nil)
