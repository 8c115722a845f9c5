// Package scheduler dispatches the periodic work: a process-wide set
// of cron-cadenced tasks (ingestion sync, alert
// pipeline, backtests, retrain, forecast generation, opportunity
// cost, ghost stock, anomaly detection, data freshness) delivered
// at-least-once to per-tenant-serialized handlers on a fixed-size
// worker pool.
package scheduler

import (
	"context"
	"time"

	"github.com/aristath/sentinel/internal/tenant"
)

// TaskType labels a registered periodic task for logging and for the
// per-tenant-per-task serialization key. The constants below name the
// tasks the scheduler dispatches; ingestion adapters register one
// instance of TaskIngestionSync per source.
type TaskType string

const (
	TaskIngestionSync      TaskType = "ingestion_sync"
	TaskAlertPipeline      TaskType = "alert_pipeline"
	TaskT1Backtest         TaskType = "t1_backtest"
	TaskWeeklyBacktest     TaskType = "weekly_backtest"
	TaskRetrain            TaskType = "retrain"
	TaskForecastGeneration TaskType = "forecast_generation"
	TaskOpportunityCost    TaskType = "opportunity_cost"
	TaskGhostStock         TaskType = "ghost_stock"
	TaskMLAnomalyDetection TaskType = "ml_anomaly_detection"
	TaskDataFreshness      TaskType = "data_freshness"
)

// Status is the outcome of one task run, per the scheduler's
// invocation surface contract: "{status, counts, completed_at,
// trigger, reasons}".
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Summary is the structured outcome every scheduled task handler
// returns. Counts holds free-form named tallies (e.g. "records_processed",
// "alerts_created") so the scheduler needn't know each task's domain
// vocabulary. Reasons carries skip/failure explanations for DataUnavailable
// and TransientDependencyError outcomes.
type Summary struct {
	Status      Status
	Counts      map[string]int
	CompletedAt time.Time
	Trigger     string
	Reasons     []string
}

// Handler runs one tenant's instance of a task. Implementations must
// be idempotent: delivery is at-least-once.
type Handler func(ctx context.Context, t tenant.Handle) (Summary, error)
