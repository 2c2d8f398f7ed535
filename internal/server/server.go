// Package server exposes the bot core over a small JSON API so transport
// adapters (webhooks, chat frontends) can submit downloads and watch tasks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/savx/savxbot/internal/app/request"
	"github.com/savx/savxbot/internal/log"
	"github.com/savx/savxbot/internal/model"
	"github.com/savx/savxbot/internal/task"
)

// Submitter accepts download requests, e.g. the request service.
type Submitter interface {
	Submit(ctx context.Context, req request.Request) (string, error)
}

// Maintainer triggers cleanup passes on demand, e.g. the maintenance
// scheduler.
type Maintainer interface {
	RunFileCleanupNow(ctx context.Context) (int, error)
	RunTaskCleanupNow(ctx context.Context) (int, error)
}

// Config is the configuration for the API server.
type Config struct {
	Requests  Submitter
	Tasks     task.Manager
	Scheduler Maintainer
	Logger    log.Logger
}

func (c *Config) defaults() error {
	if c.Requests == nil {
		return fmt.Errorf("request service is required")
	}
	if c.Tasks == nil {
		return fmt.Errorf("task manager is required")
	}
	if c.Scheduler == nil {
		return fmt.Errorf("maintenance scheduler is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "server.Server"})
	return nil
}

// Server routes API requests to the bot core. It implements http.Handler.
type Server struct {
	requests  Submitter
	tasks     task.Manager
	scheduler Maintainer
	logger    log.Logger
	router    *chi.Mux
}

// NewServer creates a new API server.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		requests:  cfg.Requests,
		tasks:     cfg.Tasks,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/downloads", s.handleSubmitDownload)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/maintenance/files", s.handleFileCleanup)
		r.Post("/maintenance/tasks", s.handleTaskCleanup)
	})
	s.router = r

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

type taskResponse struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	RequesterID  int64      `json:"requester_id"`
	Platform     string     `json:"platform"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FilePath     string     `json:"file_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Progress     float64    `json:"progress"`
}

func mapTask(t model.Task) taskResponse {
	return taskResponse{
		ID:           t.ID,
		URL:          t.URL,
		RequesterID:  t.RequesterID,
		Platform:     string(t.Platform),
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		CompletedAt:  t.CompletedAt,
		FilePath:     t.FilePath,
		ErrorMessage: t.ErrorMessage,
		Progress:     t.Progress,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSubmitDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL         string `json:"url"`
		RequesterID int64  `json:"requester_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	taskID, err := s.requests.Submit(r.Context(), request.Request{URL: req.URL, RequesterID: req.RequesterID})
	switch {
	case errors.Is(err, model.ErrNotValid):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Errorf("Could not submit download: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not submit download")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := s.tasks.Get(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	case err != nil:
		s.logger.Errorf("Could not get task: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not get task")
		return
	}

	s.writeJSON(w, http.StatusOK, mapTask(*t))
}

// handleListTasks returns the requester's tasks when requester_id is given,
// otherwise every task still in flight.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var (
		found []model.Task
		err   error
	)

	if raw := r.URL.Query().Get("requester_id"); raw != "" {
		requesterID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, "requester_id must be an integer")
			return
		}
		found, err = s.tasks.ForUser(r.Context(), requesterID)
	} else {
		found, err = s.tasks.Active(r.Context())
	}
	if err != nil {
		s.logger.Errorf("Could not list tasks: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}

	resp := make([]taskResponse, 0, len(found))
	for _, t := range found {
		resp = append(resp, mapTask(t))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": resp})
}

func (s *Server) handleFileCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.scheduler.RunFileCleanupNow(r.Context())
	if err != nil {
		s.logger.Errorf("File cleanup failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "file cleanup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleTaskCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.scheduler.RunTaskCleanupNow(r.Context())
	if err != nil {
		s.logger.Errorf("Task cleanup failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "task cleanup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("Could not encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
