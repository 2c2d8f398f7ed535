// Package download implements the download orchestrator: it bridges the
// blocking external transfer into bounded workers, enforces size limits and
// folds every outcome into a result value.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/savx/savxbot/internal/fetch"
	"github.com/savx/savxbot/internal/log"
	"github.com/savx/savxbot/internal/model"
)

const (
	defaultMaxFileSize = 50 * 1024 * 1024
	defaultMaxParallel = 3
)

// ServiceConfig is the configuration for the download orchestrator.
type ServiceConfig struct {
	Fetcher fetch.Fetcher
	// MaxFileSize is the per-video size limit in bytes.
	MaxFileSize int64
	// MaxParallel bounds the number of simultaneous transfers.
	MaxParallel int64
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = defaultMaxParallel
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "download.Service"})
	return nil
}

// Service performs downloads end-to-end. It is safe for concurrent use.
type Service struct {
	fetcher     fetch.Fetcher
	maxFileSize int64
	workers     *semaphore.Weighted
	logger      log.Logger

	mu     sync.Mutex
	active map[string]float64
}

// NewService creates a new download orchestrator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		fetcher:     cfg.Fetcher,
		maxFileSize: cfg.MaxFileSize,
		workers:     semaphore.NewWeighted(cfg.MaxParallel),
		logger:      cfg.Logger,
		active:      make(map[string]float64),
	}, nil
}

// Download fetches the video at url into outputPath, dispatching the transfer
// to a bounded worker. The calling goroutine blocks until the transfer ends
// or ctx is done, whichever comes first; a ctx expiry only stops the wait,
// the transfer itself runs to completion.
//
// Every failure is expressed in the returned result, the operation never
// panics or errors across this boundary.
func (s *Service) Download(ctx context.Context, url, outputPath string, onProgress func(float64)) model.DownloadResult {
	s.mu.Lock()
	s.active[url] = 0
	s.mu.Unlock()

	resCh := make(chan model.DownloadResult, 1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, url)
			s.mu.Unlock()

			if r := recover(); r != nil {
				s.logger.Errorf("Panic during download of %s: %v", url, r)
				resCh <- failure(model.ErrorKindUnknown, "unexpected error during download")
			}
		}()

		resCh <- s.run(ctx, url, outputPath, onProgress)
	}()

	select {
	case res := <-resCh:
		return res
	case <-ctx.Done():
		return failure(model.ErrorKindTransfer, "download wait cancelled")
	}
}

// Progress returns the current fraction of an in-flight download, 0 when the
// id is unknown. Download ids are the requested URLs.
func (s *Service) Progress(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[id]
}

// Forget drops the local progress bookkeeping of an in-flight download. It
// does NOT abort the underlying transfer, which runs to completion or failure
// regardless, so the file may still appear afterwards. This is a documented
// limitation of the external transfer library.
func (s *Service) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		delete(s.active, id)
		s.logger.Infof("Stopped tracking download: %s", id)
	}
}

func (s *Service) run(ctx context.Context, url, outputPath string, onProgress func(float64)) model.DownloadResult {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		s.logger.Errorf("Could not prepare destination for %s: %v", url, err)
		return failure(model.ErrorKindTransfer, "could not prepare destination directory")
	}

	if err := s.workers.Acquire(ctx, 1); err != nil {
		return failure(model.ErrorKindTransfer, "download wait cancelled")
	}
	defer s.workers.Release(1)

	// Check the declared size before transferring any byte.
	info, err := s.fetcher.Probe(ctx, url)
	if err != nil {
		return s.failureFromFetch(err)
	}
	if info.DeclaredSize > s.maxFileSize {
		msg := fmt.Sprintf("video too large: %.1fMB (max: %.1fMB)", mb(info.DeclaredSize), mb(s.maxFileSize))
		s.logger.Warningf("%s: %s", msg, url)
		return failure(model.ErrorKindSizeLimitExceeded, msg)
	}

	err = s.fetcher.Fetch(ctx, url, outputPath, func(ev fetch.Event) {
		s.reportProgress(url, ev, onProgress)
	})
	if err != nil {
		return s.failureFromFetch(err)
	}

	s.reportProgress(url, fetch.Event{Downloaded: 1, Total: 1}, onProgress)

	finalPath, err := resolveOutput(outputPath)
	if err != nil {
		s.logger.Errorf("Transfer finished but no output for %s: %v", url, err)
		return failure(model.ErrorKindTransfer, "downloaded file not found")
	}

	fileInfo, err := os.Stat(finalPath)
	if err != nil {
		return failure(model.ErrorKindTransfer, "downloaded file not found")
	}

	// The declared size can lie, re-check the real one.
	if fileInfo.Size() > s.maxFileSize {
		if err := os.Remove(finalPath); err != nil {
			s.logger.Errorf("Could not remove oversized file %s: %v", finalPath, err)
		}
		msg := fmt.Sprintf("downloaded file too large: %.1fMB (max: %.1fMB)", mb(fileInfo.Size()), mb(s.maxFileSize))
		s.logger.Warningf("%s: %s", msg, url)
		return failure(model.ErrorKindSizeLimitExceeded, msg)
	}

	s.logger.Infof("Download successful: %s (%.1fMB)", finalPath, mb(fileInfo.Size()))

	return model.DownloadResult{
		Success:  true,
		FilePath: finalPath,
		FileSize: fileInfo.Size(),
	}
}

// reportProgress converts a byte-count event into a clamped fraction, records
// it for Progress queries and forwards it to the caller. Ids already dropped
// with Forget stay dropped.
func (s *Service) reportProgress(url string, ev fetch.Event, onProgress func(float64)) {
	fraction := 0.0
	if ev.Total > 0 {
		fraction = float64(ev.Downloaded) / float64(ev.Total)
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	s.mu.Lock()
	if _, ok := s.active[url]; ok {
		s.active[url] = fraction
	}
	s.mu.Unlock()

	if onProgress != nil {
		onProgress(fraction)
	}
}

func (s *Service) failureFromFetch(err error) model.DownloadResult {
	switch {
	case errors.Is(err, fetch.ErrUnavailable):
		return failure(model.ErrorKindUnavailable, err.Error())
	case errors.Is(err, fetch.ErrNotFound):
		return failure(model.ErrorKindNotFound, err.Error())
	default:
		return failure(model.ErrorKindTransfer, err.Error())
	}
}

// resolveOutput returns the path of the downloaded file. The transfer library
// may have replaced the requested extension, so when the exact path is
// missing the destination directory is searched for a same-stem file.
func resolveOutput(outputPath string) (string, error) {
	if _, err := os.Stat(outputPath); err == nil {
		return outputPath, nil
	}

	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	matches, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no file with stem %q in %s", stem, dir)
	}

	sort.Strings(matches)
	return matches[0], nil
}

func failure(kind model.ErrorKind, msg string) model.DownloadResult {
	return model.DownloadResult{Kind: kind, ErrorMessage: msg}
}

func mb(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}
