package training

import "fmt"

// EWMAConfig parameterizes EWMA.
type EWMAConfig struct {
	// Alpha is the smoothing factor in (0, 1]; higher weights recent
	// observations more heavily.
	Alpha float64
}

// DefaultEWMAConfig uses alpha 0.2, the smoothing of a 9-period EMA
// (alpha = 2/(N+1)).
func DefaultEWMAConfig() EWMAConfig {
	return EWMAConfig{Alpha: 0.2}
}

// EWMA is a lightweight exponentially-weighted-moving-average
// regressor: Fit treats y as a single ordered time series (the
// feature matrix X is accepted for interface compatibility but
// ignored, since EWMA carries no feature dependence) and Predict
// repeats the final smoothed level for every requested row — the
// cold-start/ensemble-member baseline.
type EWMA struct {
	cfg       EWMAConfig
	fitted    bool
	level     float64
	residuals []float64
}

// NewEWMA constructs an EWMA with cfg. A zero-value cfg falls back to
// DefaultEWMAConfig.
func NewEWMA(cfg EWMAConfig) *EWMA {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultEWMAConfig().Alpha
	}
	return &EWMA{cfg: cfg}
}

// EWMAState is the persistable snapshot of a fitted EWMA.
type EWMAState struct {
	Config    EWMAConfig
	Level     float64
	Residuals []float64
}

// State captures e's fitted parameters.
func (e *EWMA) State() EWMAState {
	return EWMAState{Config: e.cfg, Level: e.level, Residuals: e.residuals}
}

// LoadEWMA reconstructs a fitted EWMA from a previously captured State.
func LoadEWMA(s EWMAState) *EWMA {
	return &EWMA{cfg: s.Config, level: s.Level, residuals: s.Residuals, fitted: true}
}

func (e *EWMA) Fit(X [][]float64, y []float64) error {
	if len(y) == 0 {
		return fmt.Errorf("training: EWMA.Fit requires at least one observation")
	}

	level := y[0]
	residuals := make([]float64, len(y))
	residuals[0] = 0
	for i := 1; i < len(y); i++ {
		residuals[i] = y[i] - level
		level = e.cfg.Alpha*y[i] + (1-e.cfg.Alpha)*level
	}

	e.level = level
	e.residuals = residuals
	e.fitted = true
	return nil
}

func (e *EWMA) Predict(X [][]float64) ([]Prediction, error) {
	if !e.fitted {
		return nil, fmt.Errorf("training: EWMA.Predict called before Fit")
	}
	lower, upper := residualQuantileBounds(e.residuals)

	out := make([]Prediction, len(X))
	for i := range X {
		out[i] = Prediction{
			P10: clampNonNegative(e.level + lower),
			P50: clampNonNegative(e.level),
			P90: clampNonNegative(e.level + upper),
		}
	}
	return out, nil
}

var _ Regressor = (*EWMA)(nil)
