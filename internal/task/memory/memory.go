package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/savx/savxbot/internal/log"
	"github.com/savx/savxbot/internal/model"
	"github.com/savx/savxbot/internal/task"
)

// StoreConfig is the configuration for the in-memory task store.
type StoreConfig struct {
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Memory"})
	return nil
}

// Store is an in-memory implementation of task.Manager. Task state lives only
// in process memory, a restart discards every record.
type Store struct {
	tasks  map[string]model.Task
	mu     sync.RWMutex
	logger log.Logger
}

// NewStore creates a new in-memory task store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		tasks:  make(map[string]model.Task),
		logger: cfg.Logger,
	}, nil
}

// Create registers a new pending task and returns its id.
func (s *Store) Create(ctx context.Context, url string, requesterID int64, platform model.Platform) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	s.tasks[id] = model.Task{
		ID:          id,
		URL:         url,
		RequesterID: requesterID,
		Platform:    platform,
		Status:      model.TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	s.logger.Infof("Created task %s for requester %d, platform: %s", id, requesterID, platform)

	return id, nil
}

// Status returns the current status of a task.
func (s *Store) Status(ctx context.Context, id string) (model.TaskStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return "", fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return t.Status, nil
}

// Get returns a copy of the task record.
func (s *Store) Get(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	// Return a copy.
	taskCopy := t
	return &taskCopy, nil
}

// Update applies a status change plus optional fields, enforcing the status
// transition table. A same-status update on a non-terminal task is accepted as
// a progress refresh, terminal records are never mutated.
func (s *Store) Update(ctx context.Context, id string, newStatus model.TaskStatus, up task.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	current := t.Status
	refresh := newStatus == current && !current.IsTerminal()
	if !refresh && !current.CanTransition(newStatus) {
		return fmt.Errorf("task %s: %s -> %s: %w", id, current, newStatus, model.ErrInvalidTransition)
	}

	t.Status = newStatus

	if up.FilePath != "" {
		t.FilePath = up.FilePath
	}
	if up.ErrorMessage != "" {
		t.ErrorMessage = up.ErrorMessage
	}
	if up.Progress != nil {
		t.Progress = clamp(*up.Progress)
	}

	if newStatus.IsTerminal() && t.CompletedAt == nil {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}

	s.tasks[id] = t

	if refresh {
		s.logger.Debugf("Updated task %s progress: %.2f", id, t.Progress)
	} else {
		s.logger.Infof("Updated task %s: %s -> %s", id, current, newStatus)
	}

	return nil
}

// Active returns all tasks with a pending or downloading status.
func (s *Store) Active(ctx context.Context) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := []model.Task{}
	for _, t := range s.tasks {
		if t.Status.IsActive() {
			active = append(active, t)
		}
	}

	return active, nil
}

// ForUser returns all tasks owned by the given requester.
func (s *Store) ForUser(ctx context.Context, requesterID int64) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := []model.Task{}
	for _, t := range s.tasks {
		if t.RequesterID == requesterID {
			owned = append(owned, t)
		}
	}

	return owned, nil
}

// CleanupCompleted removes terminal tasks that completed more than maxAge ago.
// Active tasks are never touched regardless of age.
func (s *Store) CleanupCompleted(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, t := range s.tasks {
		if !t.Status.IsTerminal() || t.CompletedAt == nil {
			continue
		}
		if now.Sub(*t.CompletedAt) > maxAge {
			delete(s.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Infof("Cleaned up %d completed tasks (max age: %s)", removed, maxAge)
	}

	return removed, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
