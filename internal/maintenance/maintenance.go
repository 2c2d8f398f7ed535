// Package maintenance runs the periodic eviction loops that reclaim stale
// temp files and stale terminal tasks.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/savx/savxbot/internal/log"
	"github.com/savx/savxbot/internal/storage"
	"github.com/savx/savxbot/internal/task"
)

const (
	defaultFileInterval = time.Hour
	defaultTaskInterval = 30 * time.Minute
	defaultMaxFileAge   = time.Hour
	defaultMaxTaskAge   = time.Hour

	// errBackoff is how long a loop waits after a failed cleanup pass
	// before retrying.
	errBackoff = 60 * time.Second
)

// SchedulerConfig is the configuration for the maintenance scheduler.
type SchedulerConfig struct {
	Storage storage.Manager
	Tasks   task.Manager
	// FileInterval is how often stale files are evicted.
	FileInterval time.Duration
	// TaskInterval is how often stale terminal tasks are evicted.
	TaskInterval time.Duration
	// MaxFileAge is the retention window for temp files.
	MaxFileAge time.Duration
	// MaxTaskAge is the retention window for terminal tasks.
	MaxTaskAge time.Duration
	Logger     log.Logger
}

func (c *SchedulerConfig) defaults() error {
	if c.Storage == nil {
		return fmt.Errorf("storage manager is required")
	}
	if c.Tasks == nil {
		return fmt.Errorf("task manager is required")
	}
	if c.FileInterval <= 0 {
		c.FileInterval = defaultFileInterval
	}
	if c.TaskInterval <= 0 {
		c.TaskInterval = defaultTaskInterval
	}
	if c.MaxFileAge <= 0 {
		c.MaxFileAge = defaultMaxFileAge
	}
	if c.MaxTaskAge <= 0 {
		c.MaxTaskAge = defaultMaxTaskAge
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "maintenance.Scheduler"})
	return nil
}

// Scheduler runs two independent eviction loops until stopped. Start and Stop
// are both idempotent.
type Scheduler struct {
	cfg    SchedulerConfig
	logger log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a new maintenance scheduler. It does not start any
// loop until Start is called.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scheduler{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Start launches the eviction loops. Calling it while already running is a
// logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warningf("Maintenance loops already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(2)
	go s.loop(ctx, "file-eviction", s.cfg.FileInterval, s.fileCleanup)
	go s.loop(ctx, "task-eviction", s.cfg.TaskInterval, s.taskCleanup)

	s.logger.Infof("Maintenance loops started (files: every %s, tasks: every %s)", s.cfg.FileInterval, s.cfg.TaskInterval)
}

// Stop cancels both loops and waits until they have exited. Calling it while
// already stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.logger.Infof("Maintenance loops stopped")
}

// IsRunning returns whether the eviction loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunFileCleanupNow evicts stale files synchronously, outside the periodic
// cadence.
func (s *Scheduler) RunFileCleanupNow(ctx context.Context) (int, error) {
	s.logger.Infof("Running manual file cleanup")
	return s.fileCleanup(ctx)
}

// RunTaskCleanupNow evicts stale terminal tasks synchronously, outside the
// periodic cadence.
func (s *Scheduler) RunTaskCleanupNow(ctx context.Context) (int, error) {
	s.logger.Infof("Running manual task cleanup")
	return s.taskCleanup(ctx)
}

// loop runs cleanup passes until ctx is cancelled. A failed pass is logged
// and retried after a fixed backoff, it never terminates the loop.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, cleanup func(context.Context) (int, error)) {
	defer s.wg.Done()

	logger := s.logger.WithValues(log.Kv{"loop": name})
	logger.Infof("Eviction loop started")

	for {
		wait := interval

		removed, err := cleanup(ctx)
		switch {
		case err != nil:
			logger.Errorf("Cleanup pass failed: %v", err)
			wait = errBackoff
		case removed > 0:
			logger.Infof("Cleanup pass removed %d entries", removed)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("Eviction loop stopped")
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) fileCleanup(ctx context.Context) (int, error) {
	return s.cfg.Storage.CleanupOldFiles(ctx, s.cfg.MaxFileAge)
}

func (s *Scheduler) taskCleanup(ctx context.Context) (int, error) {
	return s.cfg.Tasks.CleanupCompleted(ctx, s.cfg.MaxTaskAge)
}
