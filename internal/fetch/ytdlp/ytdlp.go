// Package ytdlp implements fetch.Fetcher on top of yt-dlp through the
// go-ytdlp bindings.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/savx/savxbot/internal/fetch"
	"github.com/savx/savxbot/internal/log"
)

const progressInterval = 500 * time.Millisecond

// FetcherConfig is the configuration for the yt-dlp fetcher.
type FetcherConfig struct {
	Logger log.Logger
}

func (c *FetcherConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "fetch.YTDLP"})
	return nil
}

// Fetcher transfers videos with yt-dlp.
type Fetcher struct {
	logger log.Logger
}

// NewFetcher creates a new yt-dlp backed fetcher.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Fetcher{logger: cfg.Logger}, nil
}

// Probe extracts metadata without transferring bytes.
func (f *Fetcher) Probe(ctx context.Context, url string) (*fetch.Info, error) {
	f.logger.Debugf("Probing video info: %s", url)

	cmd := ytdlp.New().
		SkipDownload().
		Print("%(filesize,filesize_approx|0)s").
		Print("%(title|)s")

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, f.mapError(url, err)
	}

	info := &fetch.Info{}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) > 0 {
		info.DeclaredSize = parseSize(strings.TrimSpace(lines[0]))
	}
	if len(lines) > 1 {
		info.Title = strings.TrimSpace(lines[1])
	}

	return info, nil
}

// Fetch transfers the media to outputPath. yt-dlp may replace the extension
// of the requested path with the one of the actual media container.
func (f *Fetcher) Fetch(ctx context.Context, url, outputPath string, onEvent func(fetch.Event)) error {
	f.logger.Infof("Downloading video: %s", url)

	cmd := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		Output(outputPath)

	if onEvent != nil {
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			onEvent(fetch.Event{
				Downloaded: int64(update.DownloadedBytes),
				Total:      int64(update.TotalBytes),
			})
		})
	}

	if _, err := cmd.Run(ctx, url); err != nil {
		return f.mapError(url, err)
	}

	return nil
}

// mapError folds yt-dlp failures into the package sentinels where the cause
// is recognizable. The raw library error text never leaves this package.
func (f *Fetcher) mapError(url string, err error) error {
	f.logger.Errorf("yt-dlp failed for %s: %v", url, err)

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "private"):
		return fetch.ErrUnavailable
	case strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
		return fetch.ErrNotFound
	default:
		return errors.New("download failed")
	}
}

func parseSize(s string) int64 {
	if s == "" || s == "NA" {
		return 0
	}
	// filesize_approx can come back as a float.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int64(v)
}
