// Package taskmock provides a testify mock for the task.Manager interface.
package taskmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/savx/savxbot/internal/model"
	"github.com/savx/savxbot/internal/task"
)

// MockManager is a mock implementation of task.Manager.
type MockManager struct {
	mock.Mock
}

var _ task.Manager = &MockManager{}

func (m *MockManager) Create(ctx context.Context, url string, requesterID int64, platform model.Platform) (string, error) {
	args := m.Called(ctx, url, requesterID, platform)
	return args.String(0), args.Error(1)
}

func (m *MockManager) Status(ctx context.Context, id string) (model.TaskStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.TaskStatus), args.Error(1)
}

func (m *MockManager) Get(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockManager) Update(ctx context.Context, id string, newStatus model.TaskStatus, up task.Update) error {
	args := m.Called(ctx, id, newStatus, up)
	return args.Error(0)
}

func (m *MockManager) Active(ctx context.Context) ([]model.Task, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockManager) ForUser(ctx context.Context, requesterID int64) ([]model.Task, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockManager) CleanupCompleted(ctx context.Context, maxAge time.Duration) (int, error) {
	args := m.Called(ctx, maxAge)
	return args.Int(0), args.Error(1)
}
