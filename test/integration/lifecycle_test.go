package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/savx/savxbot/internal/app/request"
	"github.com/savx/savxbot/internal/download"
	"github.com/savx/savxbot/internal/fetch"
	"github.com/savx/savxbot/internal/fetch/fetchmock"
	"github.com/savx/savxbot/internal/log"
	"github.com/savx/savxbot/internal/maintenance"
	"github.com/savx/savxbot/internal/model"
	"github.com/savx/savxbot/internal/server"
	storagefs "github.com/savx/savxbot/internal/storage/fs"
	taskmemory "github.com/savx/savxbot/internal/task/memory"
	"github.com/savx/savxbot/internal/validate"
)

type botStack struct {
	tasks   *taskmemory.Store
	storage *storagefs.Manager
	api     *httptest.Server
}

// newBotStack wires the whole application with a mock fetcher, everything
// else is the real thing.
func newBotStack(t *testing.T, fetcher fetch.Fetcher) *botStack {
	t.Helper()
	require := require.New(t)

	tasks, err := taskmemory.NewStore(taskmemory.StoreConfig{Logger: log.Noop})
	require.NoError(err)

	storage, err := storagefs.NewManager(storagefs.ManagerConfig{
		TempDir: t.TempDir(),
		Logger:  log.Noop,
	})
	require.NoError(err)

	downloader, err := download.NewService(download.ServiceConfig{
		Fetcher:     fetcher,
		MaxFileSize: 1024,
		Logger:      log.Noop,
	})
	require.NoError(err)

	requests, err := request.NewService(request.ServiceConfig{
		Validator:  validate.NewValidator(),
		Tasks:      tasks,
		Storage:    storage,
		Downloader: downloader,
		Logger:     log.Noop,
	})
	require.NoError(err)

	scheduler, err := maintenance.NewScheduler(maintenance.SchedulerConfig{
		Storage: storage,
		Tasks:   tasks,
		Logger:  log.Noop,
	})
	require.NoError(err)

	apiServer, err := server.NewServer(server.Config{
		Requests:  requests,
		Tasks:     tasks,
		Scheduler: scheduler,
		Logger:    log.Noop,
	})
	require.NoError(err)

	api := httptest.NewServer(apiServer)
	t.Cleanup(api.Close)

	return &botStack{tasks: tasks, storage: storage, api: api}
}

func (b *botStack) submit(t *testing.T, url string) (status int, body map[string]string) {
	t.Helper()

	payload := `{"url": "` + url + `", "requester_id": 7}`
	resp, err := http.Post(b.api.URL+"/api/v1/downloads", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	body = map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (b *botStack) waitTerminal(t *testing.T, taskID string) *model.Task {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := b.tasks.Get(context.Background(), taskID)
		require.NoError(t, err)
		if task.Status.IsTerminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return nil
}

func TestDownloadLifecycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fetcher := &fetchmock.MockFetcher{
		Events: []fetch.Event{{Downloaded: 50, Total: 100}, {Downloaded: 100, Total: 100}},
		WriteFile: func(outputPath string) {
			require.NoError(os.WriteFile(outputPath, make([]byte, 100), 0o644))
		},
	}
	fetcher.On("Probe", mock.Anything, mock.Anything).Once().Return(&fetch.Info{DeclaredSize: 100, Title: "test clip"}, nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Once().Return(nil)

	stack := newBotStack(t, fetcher)

	// Submit through the API.
	status, body := stack.submit(t, "https://youtube.com/shorts/dQw4w9WgXcQ")
	require.Equal(http.StatusAccepted, status)
	taskID := body["task_id"]
	require.NotEmpty(taskID)

	// The download settles into a completed task holding the file.
	task := stack.waitTerminal(t, taskID)
	assert.Equal(model.TaskStatusCompleted, task.Status)
	assert.Equal(1.0, task.Progress)
	assert.NotNil(task.CompletedAt)
	require.NotEmpty(task.FilePath)

	_, err := os.Stat(task.FilePath)
	assert.NoError(err)
	assert.Equal(".mp4", filepath.Ext(task.FilePath))

	// The task endpoint serves the same record.
	resp, err := http.Get(stack.api.URL + "/api/v1/tasks/" + taskID)
	require.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)

	// Manual cleanup through the API keeps a fresh task (retention window).
	cleanupResp, err := http.Post(stack.api.URL+"/api/v1/maintenance/tasks", "application/json", nil)
	require.NoError(err)
	defer cleanupResp.Body.Close()
	assert.Equal(http.StatusOK, cleanupResp.StatusCode)

	_, err = stack.tasks.Get(context.Background(), taskID)
	assert.NoError(err)

	// A zero retention window evicts it right away.
	removed, err := stack.tasks.CleanupCompleted(context.Background(), 0)
	require.NoError(err)
	assert.Equal(1, removed)

	_, err = stack.tasks.Get(context.Background(), taskID)
	assert.ErrorIs(err, model.ErrNotFound)

	fetcher.AssertExpectations(t)
}

func TestDownloadLifecycleFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	fetcher := &fetchmock.MockFetcher{}
	fetcher.On("Probe", mock.Anything, mock.Anything).Once().Return(&fetch.Info{DeclaredSize: 100}, nil)
	fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Once().Return(fetch.ErrUnavailable)

	stack := newBotStack(t, fetcher)

	status, body := stack.submit(t, "https://www.tiktok.com/@user/video/12345678901234567890")
	require.Equal(http.StatusAccepted, status)

	task := stack.waitTerminal(t, body["task_id"])
	assert.Equal(model.TaskStatusFailed, task.Status)
	assert.Equal("video is unavailable or private", task.ErrorMessage)
	assert.Empty(task.FilePath)

	fetcher.AssertExpectations(t)
}

func TestDownloadLifecycleRejection(t *testing.T) {
	assert := assert.New(t)

	stack := newBotStack(t, &fetchmock.MockFetcher{})

	status, body := stack.submit(t, "https://vimeo.com/123456")
	assert.Equal(http.StatusBadRequest, status)
	assert.NotEmpty(body["error"])

	// Nothing was registered.
	active, err := stack.tasks.Active(context.Background())
	assert.NoError(err)
	assert.Empty(active)
}
