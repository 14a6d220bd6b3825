// Package server exposes the dashboard datasets over HTTP. All routes
// read from flat-file caches or the in-memory snapshot; nothing here
// talks to the upstream APIs except the guarded admin fetch.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/mapping"
	"github.com/devpulse/devpulse/internal/observability"
)

// requestTimeout bounds a single API request, including forced
// snapshot rebuilds.
const requestTimeout = 60 * time.Second

// StageResult reports one stage of an admin-triggered refresh.
type StageResult struct {
	Stage    string  `json:"stage"`
	Success  bool    `json:"success"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// FetchRunner executes the full multi-stage data refresh. Stages run
// in order and the runner stops after the first failed stage.
type FetchRunner func(ctx context.Context) []StageResult

// Server wires the HTTP routes to their backing stores.
type Server struct {
	cfg        config.ServerConfig
	logger     *slog.Logger
	dashboards *dashboard.Service
	prStore    *eventcache.Store[event.PullRequest]
	issueStore *eventcache.Store[event.Issue]
	mappings   *mapping.Store
	fetch      FetchRunner

	red     *observability.REDMetrics
	metrics http.Handler

	now func() time.Time
}

// Options carries the dependencies for a Server.
type Options struct {
	Config     config.ServerConfig
	Logger     *slog.Logger
	Dashboards *dashboard.Service
	PRStore    *eventcache.Store[event.PullRequest]
	IssueStore *eventcache.Store[event.Issue]
	Mappings   *mapping.Store
	Fetch      FetchRunner
	RED        *observability.REDMetrics
	Metrics    http.Handler
}

// New creates a Server from its options.
func New(opts Options) *Server {
	return &Server{
		cfg:        opts.Config,
		logger:     opts.Logger,
		dashboards: opts.Dashboards,
		prStore:    opts.PRStore,
		issueStore: opts.IssueStore,
		mappings:   opts.Mappings,
		fetch:      opts.Fetch,
		red:        opts.RED,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(s.corsMiddleware())

	if s.red != nil {
		r.Use(s.metricsMiddleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", s.handleUsers)
		r.Get("/user-mappings", s.handleUserMappings)
		r.Get("/users/all/stats", s.handleAllUserStats)
		r.Get("/daily-stats", s.handleDailyStats)
		r.Get("/summary", s.handleSummary)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/cache-info", s.handleCacheInfo)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/pr", func(r chi.Router) {
			r.Get("/repositories", s.handlePRRepositories)
			r.Get("/stats", s.handlePRStats)
			r.Get("/stats/monthly", s.handlePRMonthlyStats)
		})

		r.Route("/jira", func(r chi.Router) {
			r.Get("/cycles", s.handleJiraCycles)
			r.Get("/stats", s.handleJiraStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Post("/fetch", s.handleAdminFetch)
		})
	})

	r.Method(http.MethodGet, "/healthz", observability.HealthHandler())
	r.Method(http.MethodGet, "/readyz", observability.ReadyHandler(s.readyCheck))

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

// readyCheck reports ready once a snapshot is loadable.
func (s *Server) readyCheck(context.Context) error {
	_, err := s.snapshot()

	return err
}

// snapshot returns the current snapshot, loading or building it on
// first use.
func (s *Server) snapshot() (*dashboard.Snapshot, error) {
	if snap := s.dashboards.Snapshot(); snap != nil {
		return snap, nil
	}

	return s.dashboards.Refresh(false)
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		return
	}
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
