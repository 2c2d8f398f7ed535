package storage

import (
	"context"
	"time"
)

// Manager is the interface for temporary video file storage. The core never
// manages raw file naming itself, it always goes through this collaborator.
type Manager interface {
	// TempPath returns a fresh unique path for a video inside the managed
	// temp directory.
	TempPath(videoID string) string

	// DeleteFile removes a file, returning true when it was removed.
	DeleteFile(ctx context.Context, path string) bool

	// FileAge returns how long ago the file was last modified.
	FileAge(path string) (time.Duration, error)

	// CleanupOldFiles deletes files older than maxAge and returns how many
	// were removed.
	CleanupOldFiles(ctx context.Context, maxAge time.Duration) (int, error)

	// ListFiles returns the paths of every file currently stored.
	ListFiles(ctx context.Context) ([]string, error)

	// TotalSize returns the combined size in bytes of all stored files.
	TotalSize(ctx context.Context) (int64, error)
}
