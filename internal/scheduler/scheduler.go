package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/tenant"
)

// TenantLister enumerates the tenants a task should fan out across.
// The scheduler calls it fresh on every cron tick so newly onboarded
// tenants pick up scheduled work without a restart.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]tenant.Handle, error)
}

// Scheduler dispatches registered Tasks on their cron cadence,
// fanning each tick out across tenants onto a fixed-size worker pool.
// A per-(tenant,task) lock, held for the run's lifetime, enforces
// "no two concurrent runs of
// the same task for the same tenant"; a tick that finds
// the lock held is dropped, relying on at-least-once delivery from
// the next tick rather than queueing a duplicate.
type Scheduler struct {
	cron     *cron.Cron
	tenants  TenantLister
	log      zerolog.Logger
	sem      chan struct{}
	mu       sync.Mutex
	running  map[string]bool
	lastRun  map[string]Summary
	tasks    []Task
}

// New constructs a Scheduler with the given worker pool size (the
// maximum number of task runs executing concurrently across all
// tenants and task types).
func New(tenants TenantLister, concurrency int, log zerolog.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Scheduler{
		cron:    cron.New(),
		tenants: tenants,
		log:     log.With().Str("component", "scheduler").Logger(),
		sem:     make(chan struct{}, concurrency),
		running: make(map[string]bool),
		lastRun: make(map[string]Summary),
	}
}

// Register adds a Task to the cron table. It returns an error only if
// the cron expression fails to parse; the task begins firing once
// Start is called.
func (s *Scheduler) Register(t Task) error {
	_, err := s.cron.AddFunc(t.Cron, func() {
		s.dispatch(t)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return nil
}

// Tasks returns the registered task table, for the operational status
// surface.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// TriggerNow runs task t for tenant th immediately, bypassing its cron
// cadence — the "manual trigger" ops surface. It blocks until the run
// (and its retries) complete.
func (s *Scheduler) TriggerNow(ctx context.Context, t Task, th tenant.Handle) Summary {
	summary, err := runWithRetry(ctx, t.Retries, func() (Summary, error) {
		return t.Handler(ctx, th)
	})
	summary.CompletedAt = time.Now()
	summary.Trigger = "manual"
	if err != nil && summary.Status == "" {
		summary.Status = StatusFailed
	}
	s.mu.Lock()
	s.lastRun[t.key(th.String())] = summary
	s.mu.Unlock()
	return summary
}

// Start begins firing registered tasks. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop waits for the in-flight cron scheduling loop to drain (not
// in-flight task runs, which are bounded by the caller's own context
// deadlines) and returns once no further ticks will fire.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// dispatch fans one cron tick of Task t out across every known
// tenant, running each on the worker pool.
func (s *Scheduler) dispatch(t Task) {
	ctx := context.Background()
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("task", string(t.Type)).Str("name", t.Name).Msg("failed to list tenants for scheduled task")
		return
	}
	for _, th := range tenants {
		th := th
		key := t.key(th.String())
		s.mu.Lock()
		if s.running[key] {
			s.mu.Unlock()
			s.log.Debug().Str("task", string(t.Type)).Str("tenant", th.String()).Msg("previous run still in flight, skipping tick")
			continue
		}
		s.running[key] = true
		s.mu.Unlock()

		s.sem <- struct{}{}
		go func() {
			defer func() {
				<-s.sem
				s.mu.Lock()
				delete(s.running, key)
				s.mu.Unlock()
			}()
			s.runOnce(t, th)
		}()
	}
}

// runOnce executes one tenant's instance of a task with its retry
// budget and records the resulting Summary.
func (s *Scheduler) runOnce(t Task, th tenant.Handle) {
	runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	summary, err := runWithRetry(runCtx, t.Retries, func() (Summary, error) {
		return t.Handler(runCtx, th)
	})
	summary.CompletedAt = time.Now()
	if summary.Trigger == "" {
		summary.Trigger = "scheduled"
	}

	s.mu.Lock()
	s.lastRun[t.key(th.String())] = summary
	s.mu.Unlock()

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Str("task", string(t.Type)).
		Str("name", t.Name).
		Str("tenant", th.String()).
		Str("status", string(summary.Status)).
		Msg("scheduled task completed")
}

// LastRun returns the most recently recorded Summary for a
// (task, tenant) pair, if any has completed.
func (s *Scheduler) LastRun(t Task, th tenant.Handle) (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.lastRun[t.key(th.String())]
	return summary, ok
}
