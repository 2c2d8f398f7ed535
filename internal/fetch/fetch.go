// Package fetch abstracts the external media transfer library behind a small
// interface so the orchestrator can be exercised without network access.
package fetch

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the source reports the video as
	// unavailable or private.
	ErrUnavailable = errors.New("video is unavailable or private")
	// ErrNotFound is returned when the source reports the video as missing.
	ErrNotFound = errors.New("video not found")
)

// Event is a periodic byte-count notification emitted during a transfer.
type Event struct {
	// Downloaded is the number of bytes transferred so far.
	Downloaded int64
	// Total is the exact or estimated total size in bytes, 0 when unknown.
	Total int64
}

// Info is the metadata probed from the source before transferring bytes.
type Info struct {
	// DeclaredSize is the size the source declares for the media, 0 when it
	// declares none.
	DeclaredSize int64
	// Title is the media title when the source exposes one.
	Title string
}

// Fetcher performs the actual media transfer. Implementations are expected to
// be slow and blocking, callers handle worker dispatch and progress fan-out.
type Fetcher interface {
	// Probe inspects the source without transferring bytes.
	Probe(ctx context.Context, url string) (*Info, error)

	// Fetch transfers the media to outputPath, emitting periodic byte-count
	// events when onEvent is non-nil. The transfer library may pick its own
	// final file extension.
	Fetch(ctx context.Context, url, outputPath string, onEvent func(Event)) error
}
