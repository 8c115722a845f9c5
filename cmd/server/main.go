// Package main is the entry point for the ShelfOps retail inventory
// intelligence platform. It wires the six tenant-scoped SQLite
// databases, the forecasting and replenishment pipelines, the alert
// and HITL decision engines, and the cron scheduler that drives them
// all, then serves the operational HTTP surface until signaled to
// shut down.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/alerts"
	"github.com/aristath/sentinel/internal/arena"
	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/backup"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/features"
	"github.com/aristath/sentinel/internal/forecast"
	"github.com/aristath/sentinel/internal/hitl"
	"github.com/aristath/sentinel/internal/optimizer"
	"github.com/aristath/sentinel/internal/pipeline"
	"github.com/aristath/sentinel/internal/scheduler"
	"github.com/aristath/sentinel/internal/server"
	"github.com/aristath/sentinel/internal/storage"
	"github.com/aristath/sentinel/internal/tenant"
	"github.com/aristath/sentinel/pkg/logger"
)

// demandForecastModel is the one model name this build trains and
// serves. A multi-model deployment would source this list from the
// tenant registry instead of a constant.
const demandForecastModel = "demand_forecast"

// forecastHorizonDays matches optimizer.DefaultForecastHorizonDays so
// the generated forecast window always covers what the reorder-point
// recalculation consumes.
const forecastHorizonDays = 14

// databases bundles the six independently-tuned SQLite handles
// internal/config.DBPath names, matched to their PRAGMA profile.
type databases struct {
	core   *database.DB
	facts  *database.DB
	ledger *database.DB
	models *database.DB
	alerts *database.DB
	sync   *database.DB
}

func openDatabases(cfg *config.Config) (*databases, error) {
	open := func(name string, profile database.DatabaseProfile) (*database.DB, error) {
		db, err := database.New(database.Config{Path: cfg.DBPath(name), Profile: profile, Name: name})
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", name, err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate %s database: %w", name, err)
		}
		return db, nil
	}

	core, err := open("core", database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	facts, err := open("facts", database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	ledgerDB, err := open("ledger", database.ProfileLedger)
	if err != nil {
		return nil, err
	}
	models, err := open("models", database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	alertsDB, err := open("alerts", database.ProfileCache)
	if err != nil {
		return nil, err
	}
	sync, err := open("sync", database.ProfileCache)
	if err != nil {
		return nil, err
	}

	return &databases{core: core, facts: facts, ledger: ledgerDB, models: models, alerts: alertsDB, sync: sync}, nil
}

func (d *databases) Close() {
	for _, db := range []*database.DB{d.core, d.facts, d.ledger, d.models, d.alerts, d.sync} {
		if db != nil {
			db.Close()
		}
	}
}

// app bundles every wired collaborator the scheduler's task handlers
// and the ops HTTP server share.
type app struct {
	log     zerolog.Logger
	cfg     *config.Config
	dbs     *databases
	tenants *tenant.Store
	bus     *events.Bus

	registry  *arena.Registry
	runtime   *forecast.Runtime
	trainer   *pipeline.Trainer
	optimize  *optimizer.Optimizer
	alertPipe *alerts.Pipeline
	hitlEng   *hitl.Engine

	reorderPairs *alerts.InventorySnapshotReader
	observations *backtest.SQLObservationSource
	reportDir    string
}

func buildApp(cfg *config.Config, dbs *databases, log zerolog.Logger) *app {
	tenants := tenant.NewStore(dbs.core, log)
	bus := events.NewBus(log)
	publisher := events.NewBusPublisher(bus)

	registry := arena.NewRegistry(dbs.models, log)
	resolver := forecast.NewVersionResolver(registry)
	artifactStore := storage.NewFileArtifactStore(cfg.ModelDir, log)
	featureBuilder := features.New(nil, features.NewStableCategoryEncoder())
	featureSource := forecast.NewSQLFeatureSource(dbs.facts, dbs.core, featureBuilder, log)
	forecastRepo := forecast.NewRepository(dbs.facts, log)
	runtime := forecast.NewRuntime(resolver, artifactStore, featureSource, forecastRepo)

	trainer := pipeline.NewTrainer(featureSource, featureBuilder, features.NewStableCategoryEncoder(), registry, artifactStore, log)

	forecastStats := optimizer.NewSQLForecastStats(dbs.facts)
	sourcing := optimizer.NewSourcingResolver(dbs.core, log)
	storeClusters := optimizer.NewSQLStoreClusters(dbs.core)
	products := optimizer.NewSQLProducts(dbs.core)
	reorderRepo := optimizer.NewSQLReorderRepository(dbs.facts, log)
	optimize := optimizer.New(forecastStats, sourcing, storeClusters, products, reorderRepo, log)

	inventory := alerts.NewInventorySnapshotReader(dbs.facts, dbs.core)
	forecastSums := alerts.NewForecastSumReader(dbs.facts)
	lifecycle := alerts.NewProductLifecycleGate(dbs.core)
	ghostStock := alerts.NewGhostStockReader(dbs.facts, dbs.core)
	anomalyFeatures := alerts.NewAnomalyFeatureReader(dbs.facts, dbs.core)

	alertPipe := alerts.NewPipeline(
		alerts.NewSQLRepository(dbs.alerts, log),
		publisher,
		log,
		alerts.NewStockoutDetector(inventory, forecastSums),
		alerts.NewReorderDetector(inventory, reorderRepo, lifecycle),
		alerts.NewAnomalyDetector(anomalyFeatures),
		alerts.NewGhostStockDetector(ghostStock),
	)

	hitlEng := hitl.NewEngine(dbs.alerts, hitl.NewSQLLedger(dbs.ledger), publisher, log)
	observations := backtest.NewSQLObservationSource(dbs.facts, log)

	return &app{
		log:          log,
		cfg:          cfg,
		dbs:          dbs,
		tenants:      tenants,
		bus:          bus,
		registry:     registry,
		runtime:      runtime,
		trainer:      trainer,
		optimize:     optimize,
		alertPipe:    alertPipe,
		hitlEng:      hitlEng,
		reorderPairs: inventory,
		observations: observations,
		reportDir:    cfg.ReportDir,
	}
}

// alertPipelineTask runs the four detectors and publishes/persists
// whatever they find.
func (a *app) alertPipelineTask(ctx context.Context, th tenant.Handle) (scheduler.Summary, error) {
	count, err := a.alertPipe.Run(ctx, th.ID())
	if err != nil {
		return scheduler.Summary{}, err
	}
	return scheduler.Summary{Status: scheduler.StatusSuccess, Counts: map[string]int{"alerts": count}}, nil
}

// forecastGenerationTask regenerates the rolling forecast horizon for
// every (store, product) pair with transaction history.
func (a *app) forecastGenerationTask(ctx context.Context, th tenant.Handle) (scheduler.Summary, error) {
	rows, err := a.runtime.Generate(th.ID(), demandForecastModel, forecastHorizonDays, "", time.Now().UTC())
	if err != nil {
		return scheduler.Summary{}, err
	}
	return scheduler.Summary{Status: scheduler.StatusSuccess, Counts: map[string]int{"forecast_rows": len(rows)}}, nil
}

// opportunityCostTask recalculates reorder points across every pair
// currently carrying an inventory snapshot.
func (a *app) opportunityCostTask(ctx context.Context, th tenant.Handle) (scheduler.Summary, error) {
	pairs, err := a.reorderPairs.ActivePairs(th.ID())
	if err != nil {
		return scheduler.Summary{}, err
	}

	updated, skipped, failed := 0, 0, 0
	for _, pair := range pairs {
		outcome, err := a.optimize.OptimizeStoreProduct(th.ID(), pair.StoreID, pair.ProductID)
		if err != nil {
			failed++
			a.log.Warn().Err(err).Str("tenant", th.String()).Msg("optimize pair failed")
			continue
		}
		if outcome == nil || outcome.Action == "skipped" {
			skipped++
			continue
		}
		updated++
	}

	status := scheduler.StatusSuccess
	if failed > 0 && updated == 0 && skipped == 0 {
		status = scheduler.StatusFailed
	} else if failed > 0 {
		status = scheduler.StatusPartial
	}
	return scheduler.Summary{
		Status: status,
		Counts: map[string]int{"updated": updated, "skipped": skipped, "failed": failed},
	}, nil
}

// retrainTask trains and registers a new candidate model version,
// auto-promoting it to champion when it is the tenant's first, or
// attempting promotion against the current champion otherwise.
func (a *app) retrainTask(ctx context.Context, th tenant.Handle) (scheduler.Summary, error) {
	version, err := a.trainer.Run(th.ID(), demandForecastModel, time.Now().UTC())
	if err != nil {
		return scheduler.Summary{}, err
	}
	return scheduler.Summary{
		Status:  scheduler.StatusSuccess,
		Counts:  map[string]int{"trained": 1},
		Reasons: []string{fmt.Sprintf("version=%s status=%s", version.Version, version.Status)},
	}, nil
}

// backtestReport is the JSON shape written to cfg.ReportDir for every
// backtest run, keyed by the window results backtest.WalkForward
// already computes.
type backtestReport struct {
	TenantID    string                  `json:"tenant_id"`
	ModelName   string                  `json:"model_name"`
	Version     string                  `json:"model_version"`
	GeneratedAt time.Time               `json:"generated_at"`
	Windows     []backtest.WindowResult `json:"windows"`
}

func (a *app) runBacktest(th tenant.Handle, params backtest.Params, reportPrefix string) (scheduler.Summary, error) {
	champion, ok, err := a.registry.Champion(th.ID(), demandForecastModel)
	if err != nil {
		return scheduler.Summary{}, err
	}
	if !ok {
		return scheduler.Summary{Status: scheduler.StatusSkipped, Reasons: []string{"no champion model yet"}}, nil
	}

	obs, err := a.observations.Observations(th.ID(), champion.Version, time.Now().UTC())
	if err != nil {
		return scheduler.Summary{}, err
	}
	if len(obs) == 0 {
		return scheduler.Summary{Status: scheduler.StatusSkipped, Reasons: []string{"no forecast/actual observations yet"}}, nil
	}

	results, err := backtest.WalkForward(obs, params)
	if err != nil {
		return scheduler.Summary{}, err
	}

	report := backtestReport{
		TenantID:    th.ID().String(),
		ModelName:   demandForecastModel,
		Version:     champion.Version,
		GeneratedAt: time.Now().UTC(),
		Windows:     results,
	}
	if err := a.writeReport(reportPrefix, th, report); err != nil {
		a.log.Warn().Err(err).Msg("write backtest report")
	}

	return scheduler.Summary{Status: scheduler.StatusSuccess, Counts: map[string]int{"windows": len(results)}}, nil
}

func (a *app) writeReport(prefix string, th tenant.Handle, report backtestReport) error {
	name := fmt.Sprintf("%s-%s-%s.json", prefix, th.ID(), report.GeneratedAt.Format("20060102T150405Z"))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(filepath.Join(a.reportDir, name), data, 0o644)
}

// t1BacktestTask runs the daily T-1 walk-forward evaluation against
// the current champion.
func (a *app) t1BacktestTask(ctx context.Context, th tenant.Handle) (scheduler.Summary, error) {
	return a.runBacktest(th, backtest.T1Params(), "t1-backtest")
}

// weeklyBacktestTask runs a coarser 7-day-window walk-forward
// evaluation against the current champion.
func (a *app) weeklyBacktestTask(ctx context.Context, th tenant.Handle) (scheduler.Summary, error) {
	return a.runBacktest(th, backtest.Params{WindowSize: 7, StepSize: 7, LookbackDays: 7}, "weekly-backtest")
}

// registerTasks builds the scheduler.Task set this deployment runs.
// Ingestion-adapter tasks (EDI/SFTP/event-broker/POS sync) need
// per-tenant connection configuration this deployment's global Config
// does not carry, so they are provisioned by the operator out of band
// rather than registered here (documented in DESIGN.md).
func registerTasks(a *app) []scheduler.Task {
	return []scheduler.Task{
		{
			Type:    scheduler.TaskAlertPipeline,
			Name:    "alert-pipeline",
			Cron:    scheduler.CronAlertPipeline,
			Retries: scheduler.RetriesAlertPipeline,
			Handler: a.alertPipelineTask,
		},
		{
			Type:    scheduler.TaskForecastGeneration,
			Name:    "forecast-generation",
			Cron:    scheduler.CronForecastGeneration,
			Retries: scheduler.RetriesForecastGeneration,
			Handler: a.forecastGenerationTask,
		},
		{
			Type:    scheduler.TaskOpportunityCost,
			Name:    "reorder-point-recalc",
			Cron:    scheduler.CronOpportunityCost,
			Retries: scheduler.RetriesOpportunityCost,
			Handler: a.opportunityCostTask,
		},
		{
			Type:    scheduler.TaskRetrain,
			Name:    "retrain",
			Cron:    scheduler.CronRetrain,
			Retries: scheduler.RetriesRetrain,
			Handler: a.retrainTask,
		},
		{
			Type:    scheduler.TaskT1Backtest,
			Name:    "t1-backtest",
			Cron:    scheduler.CronT1Backtest,
			Retries: scheduler.RetriesT1Backtest,
			Handler: a.t1BacktestTask,
		},
		{
			Type:    scheduler.TaskWeeklyBacktest,
			Name:    "weekly-backtest",
			Cron:    scheduler.CronWeeklyBacktest,
			Retries: scheduler.RetriesWeeklyBacktest,
			Handler: a.weeklyBacktestTask,
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zlog := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(zlog)

	dbs, err := openDatabases(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("open databases")
	}
	defer dbs.Close()

	a := buildApp(cfg, dbs, zlog)

	sched := scheduler.New(a.tenants, cfg.SchedulerWorkers, zlog)
	for _, t := range registerTasks(a) {
		if err := sched.Register(t); err != nil {
			zlog.Fatal().Err(err).Str("task", string(t.Type)).Msg("register scheduler task")
		}
	}
	sched.Start()
	defer sched.Stop()

	if cfg.BackupBucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		backupSvc, err := backup.New(ctx, backup.Config{
			Bucket:          cfg.BackupBucket,
			Region:          cfg.BackupRegion,
			Endpoint:        cfg.BackupEndpoint,
			AccessKeyID:     cfg.BackupAccessKeyID,
			SecretAccessKey: cfg.BackupSecretAccessKey,
		}, cfg.ModelDir, cfg.ReportDir, zlog)
		cancel()
		if err != nil {
			zlog.Error().Err(err).Msg("backup service unavailable, continuing without it")
		} else {
			go runPeriodicBackup(backupSvc, zlog)
		}
	}

	srv := server.New(server.Config{
		Log:       zlog,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Scheduler: sched,
		Tenants:   a.tenants,
	})

	go func() {
		if err := srv.Start(); err != nil {
			zlog.Error().Err(err).Msg("http server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zlog.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("http server shutdown")
	}
}

// runPeriodicBackup archives the model/report directories once a day
// until the process exits. A dedicated scheduler task would need a
// tenantless task type the current per-tenant fan-out doesn't model,
// so this runs as its own loop instead.
func runPeriodicBackup(svc *backup.Service, log zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		key, _, err := svc.Run(ctx)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("backup run failed")
			continue
		}
		log.Info().Str("key", key).Msg("backup run completed")
	}
}
