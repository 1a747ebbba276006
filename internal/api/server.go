package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"chorus/internal/config"
	"chorus/internal/logging"
	"chorus/internal/preflight"
	"chorus/internal/progress"
	"chorus/internal/queue"
)

// Server exposes job submission, status, cancellation, live progress, and
// health over HTTP.
type Server struct {
	cfg    *config.Config
	store  *queue.Store
	bus    *progress.Bus
	logger *slog.Logger

	mux      *http.ServeMux
	listener net.Listener
	server   *http.Server
}

// NewServer constructs the API server.
func NewServer(cfg *config.Config, store *queue.Store, bus *progress.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		cfg:    cfg,
		store:  store,
		bus:    bus,
		logger: logging.NewComponentLogger(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/status/", srv.handleStatus)
	mux.HandleFunc("/api/cancel/", srv.handleCancel)
	mux.HandleFunc("/api/subscribe/", srv.handleSubscribe)
	mux.HandleFunc("/api/health", srv.handleHealth)
	srv.mux = mux

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the route table, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := JobListResponse{Jobs: make([]JobStatus, 0, len(jobs))}
	for _, job := range jobs {
		payload.Jobs = append(payload.Jobs, jobStatusFrom(job))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.jobFromPath(w, r, "/api/status/")
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, jobStatusFrom(job))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.jobFromPath(w, r, "/api/cancel/")
	if !ok {
		return
	}

	flagged, err := s.store.RequestCancel(r.Context(), job.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// A job that never started can settle immediately instead of waiting
	// for admission to notice the flag.
	if flagged && job.Status == queue.StatusQueued {
		if done, err := s.store.MarkCancelled(r.Context(), job.ID); err == nil && done {
			s.bus.Publish(r.Context(), progress.Update{
				JobID:   job.ID,
				Message: "Cancelled",
				Status:  queue.StatusCancelled,
			})
		}
	}
	s.writeJSON(w, http.StatusOK, CancelResponse{Cancelled: flagged})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	checks := preflight.RunAll(r.Context(), s.cfg)
	payload := HealthResponse{Status: "ok"}
	for _, check := range checks {
		payload.Checks = append(payload.Checks, HealthCheck{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
		if !check.Passed {
			payload.Status = "degraded"
		}
	}
	for _, dep := range preflight.CheckSystemDeps(r.Context(), s.cfg) {
		payload.Dependencies = append(payload.Dependencies, DependencyStatus{
			Name:      dep.Name,
			Command:   dep.Command,
			Available: dep.Available,
			Detail:    dep.Detail,
		})
		if !dep.Available && !dep.Optional {
			payload.Status = "degraded"
		}
	}

	stats, err := s.store.Stats(r.Context())
	if err == nil {
		payload.Queue = make(map[string]int, len(stats))
		for status, count := range stats {
			payload.Queue[string(status)] = count
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// jobFromPath resolves the trailing path segment to a job, writing the
// error response itself when resolution fails.
func (s *Server) jobFromPath(w http.ResponseWriter, r *http.Request, prefix string) (*queue.Job, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func jobStatusFrom(job *queue.Job) JobStatus {
	return JobStatus{
		JobID:           job.ID,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		StatusMessage:   job.ProgressMessage,
		OutputPath:      job.OutputPath,
		ErrorDetail:     job.ErrorMessage,
		CreatedAt:       job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
