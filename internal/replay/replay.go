// Package replay implements the deterministic historical replay
// simulator: a day-by-day re-execution of retrain, forecast, and HITL
// decision logic over a holdout window, ending in a promotion-gate
// decision and a summary pass/fail verdict. Determinism requires that
// nothing inside Simulator.Run call time.Now() or an unseeded random
// source — every "now" derives from the replay day under iteration,
// and the HITL decision policy derives its seed from an FNV hash of
// (tenant, date, store, product).
package replay

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SourceFile is one manifest entry: a named input with its row count
// and content hash, as observed as of a partition's train_end_date.
type SourceFile struct {
	Name     string
	RowCount int
	Hash     string
}

// PartitionManifest records what the replay trained on, so two runs
// over the same dataset can be compared byte-for-byte.
type PartitionManifest struct {
	TrainEndDate time.Time
	HoldoutDays  int
	Files        []SourceFile
}

// Dataset supplies the manifest inputs and the ordered replay calendar
// for a holdout window. Implementations read from whatever canonical
// store backs the tenant's historical data.
type Dataset interface {
	// Files lists the source files visible as of trainEndDate, already
	// hashed and row-counted by the caller.
	Files(ctx context.Context, tenantID uuid.UUID, trainEndDate time.Time) ([]SourceFile, error)
	// Days returns the ordered calendar of replay days following
	// trainEndDate, one entry per day in the holdout window.
	Days(trainEndDate time.Time, holdoutDays int) []time.Time
}

// PredictionRow is one (store, product) prediction for a single
// replay day, carrying enough ground truth for the daily metrics and
// enough context for the HITL decision policy.
type PredictionRow struct {
	StoreID            uuid.UUID
	ProductID          uuid.UUID
	Predicted          float64
	Actual             float64
	SuggestedQty       int
	ActualStockout     bool
	PredictedStockout  bool
	ActualOverstock    bool
	PredictedOverstock bool
	Critical           bool
}

func (r PredictionRow) absError() float64 {
	d := r.Actual - r.Predicted
	if d < 0 {
		return -d
	}
	return d
}

// Trainer fits a new candidate model version as of a replay day.
type Trainer interface {
	Train(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (domain.ModelVersion, error)
}

// Predictor scores one replay day against a model version.
type Predictor interface {
	Predict(ctx context.Context, tenantID uuid.UUID, version domain.ModelVersion, day time.Time) ([]PredictionRow, error)
}

// EnsembleSweeper searches a weight grid for a blended model when the
// baseline gate fails under portfolio mode "auto".
type EnsembleSweeper interface {
	Sweep(ctx context.Context, tenantID uuid.UUID, dailyLog []DailyMetrics) (BlendResult, error)
}

// BlendResult is the outcome of an ensemble weight sweep.
type BlendResult struct {
	Weights map[string]float64
	Summary Summary
}

// DailyMetrics is one replay day's metrics log row.
type DailyMetrics struct {
	Date              time.Time
	RetrainTriggered  bool
	Trigger           RetrainTrigger
	ModelVersion      string
	MAPENonzero       float64
	StockoutMissRate  float64
	OverstockRate     float64
	CriticalFailures  int
}

// Summary is the replay's closing scorecard.
type Summary struct {
	Days              int
	MAPENonzero       float64
	StockoutMissRate  float64
	OverstockRate     float64
	CriticalFailures  int
}

// BaselineGate is the configurable pass/fail bar a Summary must clear.
type BaselineGate struct {
	MaxMAPENonzero      float64
	MaxStockoutMissRate float64
	MaxOverstockRate    float64
	MaxCriticalFailures int
}

// Evaluate reports whether summary clears every configured bound. A
// zero bound is treated as "no limit" so callers can gate on a subset
// of the four metrics.
func (g BaselineGate) Evaluate(summary Summary) bool {
	if g.MaxMAPENonzero > 0 && summary.MAPENonzero > g.MaxMAPENonzero {
		return false
	}
	if g.MaxStockoutMissRate > 0 && summary.StockoutMissRate > g.MaxStockoutMissRate {
		return false
	}
	if g.MaxOverstockRate > 0 && summary.OverstockRate > g.MaxOverstockRate {
		return false
	}
	if g.MaxCriticalFailures > 0 && summary.CriticalFailures > g.MaxCriticalFailures {
		return false
	}
	return true
}

// Decision is one deterministic HITL PO decision emitted for a
// top-error row.
type Decision struct {
	Date       time.Time
	StoreID    uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	Approved   bool
	ReasonCode string
	SeedKey    uint64
}

// PromotionResult is the outcome of the once-per-run promotion gate
// check, emitted on the first replay day by which PromotionMinDays days
// have passed since the replay started.
type PromotionResult struct {
	Day      int
	Version  string
	Approved bool
}

// Config bounds the behavior of a single Simulator.Run invocation.
type Config struct {
	HoldoutDays         int
	ScheduleDays        int // retrain cadence in replay days; default 7
	DriftMAPEThreshold  float64
	PromotionMinDays    int // default 30, minimum replay days observed before the promotion gate runs
	PromotionThreshold  float64
	TopErrorRows        int // default 10
	PortfolioMode       string // "manual" (default) or "auto"
	Baseline            BaselineGate
}

func (c Config) scheduleDays() int {
	if c.ScheduleDays <= 0 {
		return 7
	}
	return c.ScheduleDays
}

func (c Config) promotionMinDays() int {
	if c.PromotionMinDays <= 0 {
		return 30
	}
	return c.PromotionMinDays
}

func (c Config) topErrorRows() int {
	if c.TopErrorRows <= 0 {
		return 10
	}
	return c.TopErrorRows
}

// Result is the full output of one replay run.
type Result struct {
	Manifest   PartitionManifest
	DailyLog   []DailyMetrics
	Summary    Summary
	GatePassed bool
	Decisions  []Decision
	Promotion  *PromotionResult
	Blend      *BlendResult
}

// Simulator drives the day-by-day replay loop.
type Simulator struct {
	dataset   Dataset
	trainer   Trainer
	predictor Predictor
	sweeper   EnsembleSweeper
	cfg       Config
	log       zerolog.Logger
}

// NewSimulator constructs a Simulator. sweeper may be nil if portfolio
// mode is never "auto".
func NewSimulator(dataset Dataset, trainer Trainer, predictor Predictor, sweeper EnsembleSweeper, cfg Config, log zerolog.Logger) *Simulator {
	return &Simulator{
		dataset:   dataset,
		trainer:   trainer,
		predictor: predictor,
		sweeper:   sweeper,
		cfg:       cfg,
		log:       log.With().Str("component", "replay.simulator").Logger(),
	}
}

// Run executes the full replay: partition, day-by-day retrain/predict/
// decide, promotion gate, and summary gate.
func (s *Simulator) Run(ctx context.Context, tenantID uuid.UUID, trainEndDate time.Time) (Result, error) {
	files, err := s.dataset.Files(ctx, tenantID, trainEndDate)
	if err != nil {
		return Result{}, fmt.Errorf("replay: list partition files: %w", err)
	}
	manifest := PartitionManifest{
		TrainEndDate: trainEndDate,
		HoldoutDays:  s.cfg.HoldoutDays,
		Files:        files,
	}

	days := s.dataset.Days(trainEndDate, s.cfg.HoldoutDays)
	result := Result{Manifest: manifest, DailyLog: make([]DailyMetrics, 0, len(days))}

	policy := RetrainPolicy{ScheduleDays: s.cfg.scheduleDays(), DriftMAPEThreshold: s.cfg.DriftMAPEThreshold}
	rolling := newRollingWindow(14)
	lastRetrainDay := -1

	var candidate domain.ModelVersion
	var champion *domain.ModelVersion
	havePromoted := false

	for day, asOf := range days {
		trigger, retrain := policy.ShouldRetrain(day, lastRetrainDay, rolling.mean())
		if retrain {
			candidate, err = s.trainer.Train(ctx, tenantID, asOf)
			if err != nil {
				return Result{}, fmt.Errorf("replay: train day %s: %w", asOf.Format("2006-01-02"), err)
			}
			lastRetrainDay = day
		}

		rows, err := s.predictor.Predict(ctx, tenantID, candidate, asOf)
		if err != nil {
			return Result{}, fmt.Errorf("replay: predict day %s: %w", asOf.Format("2006-01-02"), err)
		}

		metrics := computeDailyMetrics(asOf, trigger, retrain, candidate.Version, rows)
		rolling.push(metrics.MAPENonzero)
		result.DailyLog = append(result.DailyLog, metrics)

		for _, row := range topErrorRows(rows, s.cfg.topErrorRows()) {
			result.Decisions = append(result.Decisions, decideHITL(tenantID, asOf, row))
		}

		if !havePromoted && day+1 >= s.cfg.promotionMinDays() {
			approved := arena.PromotionGate(candidate, champion, s.cfg.PromotionThreshold)
			result.Promotion = &PromotionResult{Day: day, Version: candidate.Version, Approved: approved}
			if approved {
				c := candidate
				champion = &c
			}
			havePromoted = true
		}
	}

	result.Summary = summarize(result.DailyLog)
	result.GatePassed = s.cfg.Baseline.Evaluate(result.Summary)

	if !result.GatePassed && s.cfg.PortfolioMode == "auto" && s.sweeper != nil {
		blend, err := s.sweeper.Sweep(ctx, tenantID, result.DailyLog)
		if err != nil {
			return Result{}, fmt.Errorf("replay: ensemble sweep: %w", err)
		}
		result.Blend = &blend
	}

	s.log.Info().
		Int("days", len(result.DailyLog)).
		Bool("gate_passed", result.GatePassed).
		Msg("replay run complete")

	return result, nil
}

func summarize(dailyLog []DailyMetrics) Summary {
	if len(dailyLog) == 0 {
		return Summary{}
	}
	var mapeSum, stockoutSum, overstockSum float64
	var critical int
	for _, m := range dailyLog {
		mapeSum += m.MAPENonzero
		stockoutSum += m.StockoutMissRate
		overstockSum += m.OverstockRate
		critical += m.CriticalFailures
	}
	n := float64(len(dailyLog))
	return Summary{
		Days:             len(dailyLog),
		MAPENonzero:      mapeSum / n,
		StockoutMissRate: stockoutSum / n,
		OverstockRate:    overstockSum / n,
		CriticalFailures: critical,
	}
}

func computeDailyMetrics(date time.Time, trigger RetrainTrigger, retrained bool, version string, rows []PredictionRow) DailyMetrics {
	var mapeSum float64
	var mapeCount int
	var stockoutActual, stockoutMissed int
	var overstockCount int
	var critical int

	for _, row := range rows {
		if row.Actual != 0 {
			mapeSum += row.absError() / absFloat(row.Actual)
			mapeCount++
		}
		if row.ActualStockout {
			stockoutActual++
			if !row.PredictedStockout {
				stockoutMissed++
			}
		}
		if row.ActualOverstock {
			overstockCount++
		}
		if row.Critical {
			critical++
		}
	}

	metrics := DailyMetrics{
		Date:             date,
		RetrainTriggered: retrained,
		Trigger:          trigger,
		ModelVersion:     version,
		CriticalFailures: critical,
	}
	if mapeCount > 0 {
		metrics.MAPENonzero = mapeSum / float64(mapeCount)
	}
	if stockoutActual > 0 {
		metrics.StockoutMissRate = float64(stockoutMissed) / float64(stockoutActual)
	}
	if len(rows) > 0 {
		metrics.OverstockRate = float64(overstockCount) / float64(len(rows))
	}
	return metrics
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// topErrorRows returns up to n rows sorted by descending absolute
// error, breaking ties on (store_id, product_id) string order so the
// selection is stable across identical runs.
func topErrorRows(rows []PredictionRow, n int) []PredictionRow {
	sorted := make([]PredictionRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		ei, ej := sorted[i].absError(), sorted[j].absError()
		if ei != ej {
			return ei > ej
		}
		if sorted[i].StoreID != sorted[j].StoreID {
			return sorted[i].StoreID.String() < sorted[j].StoreID.String()
		}
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type rollingWindow struct {
	size   int
	values []float64
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, values: make([]float64, 0, size)}
}

func (w *rollingWindow) push(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[len(w.values)-w.size:]
	}
}

func (w *rollingWindow) mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}
