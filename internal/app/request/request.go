// Package request implements the request-handling flow: classify the URL,
// register a task and drive the download while mirroring its progress into
// the task store.
package request

import (
	"context"
	"fmt"
	"time"

	"github.com/savx/savxbot/internal/log"
	"github.com/savx/savxbot/internal/model"
	"github.com/savx/savxbot/internal/storage"
	"github.com/savx/savxbot/internal/task"
	"github.com/savx/savxbot/internal/validate"
)

// Validator classifies an inbound URL.
type Validator interface {
	Validate(rawURL string) validate.Result
}

// Downloader performs one download end-to-end, reporting progress fractions.
type Downloader interface {
	Download(ctx context.Context, url, outputPath string, onProgress func(float64)) model.DownloadResult
}

// ServiceConfig is the configuration for the request service.
type ServiceConfig struct {
	Validator  Validator
	Tasks      task.Manager
	Storage    storage.Manager
	Downloader Downloader
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Validator == nil {
		return fmt.Errorf("validator is required")
	}
	if c.Tasks == nil {
		return fmt.Errorf("task manager is required")
	}
	if c.Storage == nil {
		return fmt.Errorf("storage manager is required")
	}
	if c.Downloader == nil {
		return fmt.Errorf("downloader is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Request"})
	return nil
}

// Service handles inbound download requests.
type Service struct {
	validator  Validator
	tasks      task.Manager
	storage    storage.Manager
	downloader Downloader
	logger     log.Logger
}

// NewService creates a new request service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		validator:  cfg.Validator,
		tasks:      cfg.Tasks,
		storage:    cfg.Storage,
		downloader: cfg.Downloader,
		logger:     cfg.Logger,
	}, nil
}

// pollInterval is how often Process re-reads the task store while waiting
// for a terminal state.
const pollInterval = 100 * time.Millisecond

// Request is one inbound download request, already delivered by the
// transport adapter.
type Request struct {
	URL         string
	RequesterID int64
}

// Submit validates the request and, when it is acceptable, registers a task
// and starts the download in the background. It returns the task id
// immediately; completion is observed through the task store.
//
// Invalid URLs are rejected with a wrapped model.ErrNotValid before any task
// exists.
func (s *Service) Submit(ctx context.Context, req Request) (string, error) {
	res := s.validator.Validate(req.URL)
	if !res.Valid {
		return "", fmt.Errorf("%s: %w", res.ErrorMessage, model.ErrNotValid)
	}

	taskID, err := s.tasks.Create(ctx, req.URL, req.RequesterID, res.Platform)
	if err != nil {
		return "", fmt.Errorf("could not create task: %w", err)
	}

	videoID := res.VideoID
	if videoID == "" {
		videoID = taskID
	}
	outputPath := s.storage.TempPath(videoID)

	// The download outlives the inbound request, it is tracked through the
	// task store rather than the spawning context.
	bgCtx := context.WithoutCancel(ctx)
	go s.runDownload(bgCtx, taskID, req.URL, outputPath)

	return taskID, nil
}

// Process behaves like Submit but waits for the download to finish and
// returns the final task record. It is meant for transports that deliver the
// file in the same interaction.
func (s *Service) Process(ctx context.Context, req Request) (*model.Task, error) {
	taskID, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.wait(ctx, taskID)
}

func (s *Service) runDownload(ctx context.Context, taskID, url, outputPath string) {
	logger := s.logger.WithValues(log.Kv{"task": taskID})

	onProgress := func(fraction float64) {
		err := s.tasks.Update(ctx, taskID, model.TaskStatusDownloading, task.Update{Progress: &fraction})
		if err != nil {
			// The task may have raced into a terminal state, progress
			// updates are best-effort.
			logger.Debugf("Dropped progress update: %v", err)
		}
	}

	if err := s.tasks.Update(ctx, taskID, model.TaskStatusDownloading, task.Update{}); err != nil {
		logger.Errorf("Could not mark task downloading: %v", err)
		return
	}

	res := s.downloader.Download(ctx, url, outputPath, onProgress)

	if res.Success {
		err := s.tasks.Update(ctx, taskID, model.TaskStatusCompleted, task.Update{FilePath: res.FilePath})
		if err != nil {
			logger.Errorf("Could not mark task completed: %v", err)
		}
		logger.Infof("Download completed: %s (%d bytes)", res.FilePath, res.FileSize)
		return
	}

	err := s.tasks.Update(ctx, taskID, model.TaskStatusFailed, task.Update{ErrorMessage: res.ErrorMessage})
	if err != nil {
		logger.Errorf("Could not mark task failed: %v", err)
	}
	logger.Warningf("Download failed: %s", res.ErrorMessage)
}

// wait polls the task store until the task reaches a terminal state or ctx
// expires.
func (s *Service) wait(ctx context.Context, taskID string) (*model.Task, error) {
	for {
		t, err := s.tasks.Get(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("could not get task: %w", err)
		}
		if t.Status.IsTerminal() {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
