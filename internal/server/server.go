// Package server provides the operational HTTP surface: health,
// scheduler status and manual trigger endpoints. The business API
// itself is out of scope — tenants interact with ShelfOps
// through the ingestion adapters and the scheduler, not a REST API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/sentinel/internal/scheduler"
	"github.com/aristath/sentinel/internal/tenant"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Scheduler *scheduler.Scheduler
	Tenants   scheduler.TenantLister
}

// Server is the ops-only HTTP surface.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	sched  *scheduler.Scheduler
	tnts   scheduler.TenantLister
}

// New constructs a Server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		sched:  cfg.Scheduler,
		tnts:   cfg.Tenants,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/ops", func(r chi.Router) {
		r.Get("/scheduler/tasks", s.handleSchedulerTasks)
		r.Get("/scheduler/tasks/{taskType}/{tenantID}", s.handleSchedulerLastRun)
		r.Post("/scheduler/tasks/{taskType}/{tenantID}/trigger", s.handleSchedulerTrigger)
		r.Get("/system", s.handleSystemStats)
	})
}

// handleSystemStats reports host CPU/memory utilization for an
// operator dashboard.
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		cpuPercent = []float64{0}
	}
	memStat, err := mem.VirtualMemory()
	memPercent := 0.0
	if err == nil {
		memPercent = memStat.UsedPercent
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"cpu_percent": cpuPercent[0],
		"mem_percent": memPercent,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedulerTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Tasks())
}

func (s *Server) handleSchedulerLastRun(w http.ResponseWriter, r *http.Request) {
	task, ok := s.findTask(chi.URLParam(r, "taskType"))
	if !ok {
		http.Error(w, "unknown task type", http.StatusNotFound)
		return
	}
	th, err := tenant.Resolve(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, "invalid tenant id", http.StatusBadRequest)
		return
	}
	summary, ok := s.sched.LastRun(task, th)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_run_yet"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	task, ok := s.findTask(chi.URLParam(r, "taskType"))
	if !ok {
		http.Error(w, "unknown task type", http.StatusNotFound)
		return
	}
	th, err := tenant.Resolve(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, "invalid tenant id", http.StatusBadRequest)
		return
	}
	summary := s.sched.TriggerNow(r.Context(), task, th)
	writeJSON(w, http.StatusAccepted, summary)
}

func (s *Server) findTask(taskType string) (scheduler.Task, bool) {
	for _, t := range s.sched.Tasks() {
		if string(t.Type) == taskType {
			return t, true
		}
	}
	return scheduler.Task{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Router exposes the underlying chi router for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting operational HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down operational HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
