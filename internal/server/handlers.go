package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
)

const (
	defaultListLimit = 25
	maxListLimit     = 200
)

// handleHealth reports database reachability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListJobRuns returns recent job runs, newest first
func (s *Server) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	runs, err := s.store.ListJobRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []db.JobRun{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"job_runs": runs, "count": len(runs)})
}

// handleGetJobRun returns one job run with its live counters
func (s *Server) handleGetJobRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	run, err := s.store.GetJobRun(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if run == nil {
		s.writeError(w, &ErrNotFound{Kind: "job run", ID: id.String()})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

type createJobRequestBody struct {
	MaxTasks   int    `json:"max_tasks"`
	TimeBucket string `json:"time_bucket"`
}

// handleCreateJobRequest enqueues a bounded dispatch session
func (s *Server) handleCreateJobRequest(w http.ResponseWriter, r *http.Request) {
	var body createJobRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if body.MaxTasks < 0 {
		s.writeError(w, &ErrValidation{Field: "max_tasks", Message: "must be >= 0"})
		return
	}

	req, err := s.store.CreateJobRequest(r.Context(), db.JobRequestInput{
		Kind:       db.JobKindSearchSession,
		MaxTasks:   body.MaxTasks,
		TimeBucket: strings.TrimSpace(body.TimeBucket),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, req)
}

// handleGetJobRequest returns a job request
func (s *Server) handleGetJobRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := s.store.GetJobRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req == nil {
		s.writeError(w, &ErrNotFound{Kind: "job request", ID: id.String()})
		return
	}
	s.jsonResponse(w, http.StatusOK, req)
}

// handleCancelJobRequest flags a job request for cooperative cancellation
func (s *Server) handleCancelJobRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := s.store.GetJobRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req == nil {
		s.writeError(w, &ErrNotFound{Kind: "job request", ID: id.String()})
		return
	}
	if err := s.store.RequestCancel(r.Context(), id); err != nil {
		s.writeError(w, &ErrConflict{Message: "cannot cancel job request", Cause: err})
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{"id": id, "cancel_requested": true})
}

// handleTaskStats returns task counts by status
func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		s.errorResponse(w, http.StatusNotImplemented, "task stats unavailable")
		return
	}
	counts, err := s.tasks.CountTasksByStatus(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"by_status": counts, "total": total})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "invalid UUID"}
	}
	return id, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &ErrValidation{Field: "limit", Message: "must be a positive integer"}
	}
	return min(n, maxListLimit), nil
}
