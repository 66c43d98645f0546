// Package api exposes audits, job polling, scouting and report history over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ppiankov/promessa/internal/audit"
	"github.com/ppiankov/promessa/internal/jobs"
	"github.com/ppiankov/promessa/internal/metrics"
	"github.com/ppiankov/promessa/internal/model"
)

// Auditor runs one audit synchronously.
type Auditor interface {
	Audit(ctx context.Context, req audit.Request) (*model.AuditReport, error)
}

// JobQueue shares audit computations by fingerprint.
type JobQueue interface {
	Submit(ctx context.Context, fingerprint string, work jobs.Work) model.AuditJob
	Wait(ctx context.Context, fingerprint string) (model.AuditJob, error)
	Status(fingerprint string) (model.AuditJob, error)
}

// Scouter discovers unseen news items for a subject.
type Scouter interface {
	Search(ctx context.Context, subject string) ([]model.ScoutResult, error)
}

// ReportHistory reads persisted audit reports.
type ReportHistory interface {
	ReportByFingerprint(ctx context.Context, fingerprint string) (*model.AuditReport, error)
	ReportsByPolitician(ctx context.Context, politicianID string, limit int) ([]*model.AuditReport, error)
}

// Deps are the handles the server routes to.
type Deps struct {
	Auditor Auditor
	Jobs    JobQueue
	Scout   Scouter
	Reports ReportHistory
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server is the HTTP surface of promessa.
type Server struct {
	cfg        model.ServerConfig
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server and builds its router.
func New(cfg model.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.SyncWait <= 0 {
		cfg.SyncWait = model.DefaultConfig().Server.SyncWait
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "api"),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Post("/audit", s.handleAudit)
	r.Get("/jobs/{fingerprint}", s.handleJob)
	r.Get("/scout/{subject}", s.handleScout)
	r.Get("/reports", s.handleReports)
	r.Get("/reports/{fingerprint}", s.handleReport)

	return r
}

// observe logs every request and records it under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.deps.Metrics.ObserveHTTP(route, r.Method, status, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.SyncWait + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
