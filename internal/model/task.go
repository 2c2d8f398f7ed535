package model

import (
	"time"
)

// TaskStatus represents the state of a download task.
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusFailed      TaskStatus = "failed"
)

// validTransitions is the closed transition table for task statuses.
// Completed and Failed are terminal.
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:     {TaskStatusDownloading, TaskStatusFailed},
	TaskStatusDownloading: {TaskStatusCompleted, TaskStatusFailed},
	TaskStatusCompleted:   {},
	TaskStatusFailed:      {},
}

// IsTerminal returns true if no further transitions are permitted.
func (ts TaskStatus) IsTerminal() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed
}

// IsActive returns true if the task still has work pending or in flight.
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusPending || ts == TaskStatusDownloading
}

// CanTransition returns true if moving from the current status to next is
// allowed by the transition table.
func (ts TaskStatus) CanTransition(next TaskStatus) bool {
	for _, s := range validTransitions[ts] {
		if s == next {
			return true
		}
	}
	return false
}

// Task represents a single requested media fetch.
type Task struct {
	ID           string
	URL          string
	RequesterID  int64
	Platform     Platform
	Status       TaskStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	FilePath     string
	ErrorMessage string
	Progress     float64 // Always within [0.0, 1.0].
}
