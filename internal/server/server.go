// Package server provides the read/ops HTTP surface for the discovery worker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Store is the persistence surface the server reads from. *db.DB implements it.
type Store interface {
	Ping(ctx context.Context) error
	GetJobRun(ctx context.Context, id uuid.UUID) (*db.JobRun, error)
	ListJobRuns(ctx context.Context, limit int) ([]db.JobRun, error)
	CreateJobRequest(ctx context.Context, input db.JobRequestInput) (*db.JobRequest, error)
	GetJobRequest(ctx context.Context, id uuid.UUID) (*db.JobRequest, error)
	RequestCancel(ctx context.Context, id uuid.UUID) error
}

// TaskCounter reports queue depth by status. *db.TaskStore implements it.
type TaskCounter interface {
	CountTasksByStatus(ctx context.Context) (map[string]int, error)
}

var (
	_ Store       = (*db.DB)(nil)
	_ TaskCounter = (*db.TaskStore)(nil)
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	store      Store
	tasks      TaskCounter
	metrics    http.Handler
	logger     *slog.Logger
}

// Config holds server configuration
type Config struct {
	Addr string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// New creates a new server instance
func New(cfg Config, store Store, tasks TaskCounter) *Server {
	s := &Server{
		store:   store,
		tasks:   tasks,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.withLogging)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/job-runs", s.handleListJobRuns)
	r.Get("/job-runs/{id}", s.handleGetJobRun)

	r.Post("/job-requests", s.handleCreateJobRequest)
	r.Get("/job-requests/{id}", s.handleGetJobRequest)
	r.Post("/job-requests/{id}/cancel", s.handleCancelJobRequest)

	r.Get("/tasks/stats", s.handleTaskStats)
	return r
}

// Start listens until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withLogging logs each request with its duration
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.errorResponse(w, status, err.Error())
}
