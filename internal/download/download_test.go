package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/savx/savxbot/internal/download"
	"github.com/savx/savxbot/internal/fetch"
	"github.com/savx/savxbot/internal/fetch/fetchmock"
	"github.com/savx/savxbot/internal/model"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    download.ServiceConfig
		expErr bool
	}{
		"Valid config": {
			cfg: download.ServiceConfig{Fetcher: &fetchmock.MockFetcher{}},
		},
		"Missing fetcher returns error": {
			cfg:    download.ServiceConfig{},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := download.NewService(tt.cfg)

			if tt.expErr {
				require.Error(t, err)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	const testURL = "https://youtube.com/shorts/abc123"

	tests := map[string]struct {
		maxFileSize int64
		setupMock   func(dir string, f *fetchmock.MockFetcher)
		validate    func(t *testing.T, dir string, res model.DownloadResult)
	}{
		"A transfer within the size limit should succeed": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return(&fetch.Info{DeclaredSize: 100}, nil)
				f.On("Fetch", mock.Anything, testURL, mock.Anything).Return(nil)
				f.Events = []fetch.Event{
					{Downloaded: 50, Total: 100},
					{Downloaded: 100, Total: 100},
				}
				f.WriteFile = func(outputPath string) {
					_ = os.WriteFile(outputPath, make([]byte, 100), 0o644)
				}
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.True(t, res.Success)
				assert.Equal(t, int64(100), res.FileSize)
				assert.FileExists(t, res.FilePath)
			},
		},

		"A declared size over the limit should abort without writing": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return(&fetch.Info{DeclaredSize: 5000}, nil)
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.False(t, res.Success)
				assert.Equal(t, model.ErrorKindSizeLimitExceeded, res.Kind)
				assert.NotEmpty(t, res.ErrorMessage)

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Empty(t, entries)
			},
		},

		"An oversized downloaded file should be deleted": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				// The source declares nothing, the real file busts the limit.
				f.On("Probe", mock.Anything, testURL).Return(&fetch.Info{}, nil)
				f.On("Fetch", mock.Anything, testURL, mock.Anything).Return(nil)
				f.WriteFile = func(outputPath string) {
					_ = os.WriteFile(outputPath, make([]byte, 2048), 0o644)
				}
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.False(t, res.Success)
				assert.Equal(t, model.ErrorKindSizeLimitExceeded, res.Kind)

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Empty(t, entries)
			},
		},

		"A transfer that picks its own extension should still be found": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return(&fetch.Info{}, nil)
				f.On("Fetch", mock.Anything, testURL, mock.Anything).Return(nil)
				f.WriteFile = func(outputPath string) {
					stem := outputPath[:len(outputPath)-len(filepath.Ext(outputPath))]
					_ = os.WriteFile(stem+".webm", make([]byte, 10), 0o644)
				}
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.True(t, res.Success)
				assert.Equal(t, ".webm", filepath.Ext(res.FilePath))
			},
		},

		"A transfer that leaves no file behind should fail": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return(&fetch.Info{}, nil)
				f.On("Fetch", mock.Anything, testURL, mock.Anything).Return(nil)
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.False(t, res.Success)
				assert.Equal(t, model.ErrorKindTransfer, res.Kind)
				assert.Equal(t, "downloaded file not found", res.ErrorMessage)
			},
		},

		"An unavailable video should surface as such": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return((*fetch.Info)(nil), fetch.ErrUnavailable)
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.False(t, res.Success)
				assert.Equal(t, model.ErrorKindUnavailable, res.Kind)
				assert.Equal(t, "video is unavailable or private", res.ErrorMessage)
			},
		},

		"A missing video should surface as not found": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return((*fetch.Info)(nil), fetch.ErrNotFound)
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.False(t, res.Success)
				assert.Equal(t, model.ErrorKindNotFound, res.Kind)
			},
		},

		"A generic transfer failure should map to a transfer error": {
			maxFileSize: 1024,
			setupMock: func(dir string, f *fetchmock.MockFetcher) {
				f.On("Probe", mock.Anything, testURL).Return(&fetch.Info{}, nil)
				f.On("Fetch", mock.Anything, testURL, mock.Anything).Return(errors.New("download failed"))
			},
			validate: func(t *testing.T, dir string, res model.DownloadResult) {
				assert.False(t, res.Success)
				assert.Equal(t, model.ErrorKindTransfer, res.Kind)
				assert.Equal(t, "download failed", res.ErrorMessage)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			mf := &fetchmock.MockFetcher{}
			tt.setupMock(dir, mf)

			svc, err := download.NewService(download.ServiceConfig{
				Fetcher:     mf,
				MaxFileSize: tt.maxFileSize,
			})
			require.NoError(t, err)

			res := svc.Download(context.Background(), testURL, filepath.Join(dir, "abc123_x1y2z3w4.mp4"), nil)
			tt.validate(t, dir, res)
			mf.AssertExpectations(t)
		})
	}
}

func TestDownloadProgressReporting(t *testing.T) {
	const testURL = "https://youtube.com/shorts/abc123"
	dir := t.TempDir()

	mf := &fetchmock.MockFetcher{}
	mf.On("Probe", mock.Anything, testURL).Return(&fetch.Info{DeclaredSize: 100}, nil)
	mf.On("Fetch", mock.Anything, testURL, mock.Anything).Return(nil)
	mf.Events = []fetch.Event{
		{Downloaded: 25, Total: 100},
		{Downloaded: 200, Total: 100}, // Over-reported, must clamp to 1.
		{Downloaded: 50, Total: 0},    // Unknown total reports 0.
	}
	mf.WriteFile = func(outputPath string) {
		_ = os.WriteFile(outputPath, make([]byte, 100), 0o644)
	}

	svc, err := download.NewService(download.ServiceConfig{Fetcher: mf, MaxFileSize: 1024})
	require.NoError(t, err)

	var got []float64
	res := svc.Download(context.Background(), testURL, filepath.Join(dir, "abc123_x1y2z3w4.mp4"), func(f float64) {
		got = append(got, f)
	})

	require.True(t, res.Success)
	// The three events plus the final completion report.
	require.Len(t, got, 4)
	assert.Equal(t, 0.25, got[0])
	assert.Equal(t, 1.0, got[1])
	assert.Equal(t, 0.0, got[2])
	assert.Equal(t, 1.0, got[3])
}

func TestProgressTrackingAndForget(t *testing.T) {
	svc, err := download.NewService(download.ServiceConfig{Fetcher: &fetchmock.MockFetcher{}})
	require.NoError(t, err)

	// Unknown ids report zero progress.
	assert.Equal(t, 0.0, svc.Progress("https://youtube.com/shorts/unknown"))

	// Forget on an unknown id is a no-op.
	svc.Forget("https://youtube.com/shorts/unknown")
}
