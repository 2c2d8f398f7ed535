package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/savx/savxbot/internal/log"
)

const defaultExtension = "mp4"

// ManagerConfig is the configuration for the filesystem storage manager.
type ManagerConfig struct {
	// TempDir is the directory holding temporary video files. It is created
	// if missing.
	TempDir string
	Logger  log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.TempDir == "" {
		return fmt.Errorf("temp dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.FS"})
	return nil
}

// Manager is a filesystem implementation of storage.Manager.
type Manager struct {
	tempDir string
	logger  log.Logger
}

// NewManager creates a new filesystem storage manager, ensuring the temp
// directory exists.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create temp directory %q: %w", cfg.TempDir, err)
	}
	cfg.Logger.Debugf("Temporary directory ready: %s", cfg.TempDir)

	return &Manager{
		tempDir: cfg.TempDir,
		logger:  cfg.Logger,
	}, nil
}

// TempPath returns a fresh unique path for a video. A random suffix avoids
// collisions between concurrent requests for the same video.
func (m *Manager) TempPath(videoID string) string {
	suffix := uuid.New().String()[:8]
	name := fmt.Sprintf("%s_%s.%s", videoID, suffix, defaultExtension)
	return filepath.Join(m.tempDir, name)
}

// DeleteFile removes a file, returning true when it was removed.
func (m *Manager) DeleteFile(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		m.logger.Warningf("File not found or not a file: %s", path)
		return false
	}

	if err := os.Remove(path); err != nil {
		m.logger.Errorf("Failed to delete file %s: %v", path, err)
		return false
	}

	m.logger.Infof("Deleted file: %s", path)
	return true
}

// FileAge returns how long ago the file was last modified.
func (m *Manager) FileAge(path string) (time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("could not stat %q: %w", path, err)
	}

	return time.Since(info.ModTime()), nil
}

// CleanupOldFiles deletes files older than maxAge from the temp directory.
func (m *Manager) CleanupOldFiles(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return 0, fmt.Errorf("could not read temp directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(m.tempDir, entry.Name())
		age, err := m.FileAge(path)
		if err != nil {
			m.logger.Warningf("Skipping %s: %v", path, err)
			continue
		}

		if age > maxAge && m.DeleteFile(ctx, path) {
			deleted++
		}
	}

	m.logger.Debugf("Cleanup completed: %d files deleted (max age: %s)", deleted, maxAge)

	return deleted, nil
}

// ListFiles returns the paths of every file in the temp directory.
func (m *Manager) ListFiles(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return nil, fmt.Errorf("could not read temp directory: %w", err)
	}

	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(m.tempDir, entry.Name()))
	}

	return files, nil
}

// TotalSize returns the combined size in bytes of all files in the temp
// directory.
func (m *Manager) TotalSize(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return 0, fmt.Errorf("could not read temp directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}

	return total, nil
}
