// Package storagemock provides a testify mock for the storage.Manager
// interface.
package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/savx/savxbot/internal/storage"
)

// MockManager is a mock implementation of storage.Manager.
type MockManager struct {
	mock.Mock
}

var _ storage.Manager = &MockManager{}

func (m *MockManager) TempPath(videoID string) string {
	args := m.Called(videoID)
	return args.String(0)
}

func (m *MockManager) DeleteFile(ctx context.Context, path string) bool {
	args := m.Called(ctx, path)
	return args.Bool(0)
}

func (m *MockManager) FileAge(path string) (time.Duration, error) {
	args := m.Called(path)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockManager) CleanupOldFiles(ctx context.Context, maxAge time.Duration) (int, error) {
	args := m.Called(ctx, maxAge)
	return args.Int(0), args.Error(1)
}

func (m *MockManager) ListFiles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockManager) TotalSize(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
