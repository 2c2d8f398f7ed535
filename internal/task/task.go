package task

import (
	"context"
	"time"

	"github.com/savx/savxbot/internal/model"
)

// Update carries the optional fields written together with a status update.
// Nil/empty fields are left untouched.
type Update struct {
	// FilePath is set on completed tasks.
	FilePath string
	// ErrorMessage is set on failed tasks.
	ErrorMessage string
	// Progress, when non-nil, is clamped into [0.0, 1.0] before writing.
	Progress *float64
}

// Manager is the authoritative registry of download tasks and their state
// machine. All operations are safe for concurrent use and linearizable per
// task id.
type Manager interface {
	// Create registers a new pending task and returns its id.
	Create(ctx context.Context, url string, requesterID int64, platform model.Platform) (string, error)

	// Status returns the current status of a task, or a model.ErrNotFound
	// wrapped error for unknown ids.
	Status(ctx context.Context, id string) (model.TaskStatus, error)

	// Get returns a copy of the task record.
	Get(ctx context.Context, id string) (*model.Task, error)

	// Update applies a status change plus optional fields. Transitions not
	// present in the status transition table are rejected with a wrapped
	// model.ErrInvalidTransition and leave the task unchanged.
	Update(ctx context.Context, id string, newStatus model.TaskStatus, up Update) error

	// Active returns all tasks with a pending or downloading status.
	Active(ctx context.Context) ([]model.Task, error)

	// ForUser returns all tasks owned by the given requester.
	ForUser(ctx context.Context, requesterID int64) ([]model.Task, error)

	// CleanupCompleted removes terminal tasks that completed more than
	// maxAge ago and returns how many were removed.
	CleanupCompleted(ctx context.Context, maxAge time.Duration) (int, error)
}
