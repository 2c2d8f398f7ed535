package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/savx/savxbot/internal/app/request"
	"github.com/savx/savxbot/internal/download"
	downloadytdlp "github.com/savx/savxbot/internal/fetch/ytdlp"
	"github.com/savx/savxbot/internal/log"
	loglogrus "github.com/savx/savxbot/internal/log/logrus"
	"github.com/savx/savxbot/internal/maintenance"
	"github.com/savx/savxbot/internal/server"
	storagefs "github.com/savx/savxbot/internal/storage/fs"
	taskmemory "github.com/savx/savxbot/internal/task/memory"
	"github.com/savx/savxbot/internal/validate"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"

	gracefulShutdownTimeout = 10 * time.Second
)

// Config is the application command line configuration.
type Config struct {
	Debug         bool
	NoLog         bool
	NoColor       bool
	LoggerType    string
	ListenAddr    string
	TempDir       string
	MaxFileSizeMB int64
	MaxParallel   int64
	FileInterval  time.Duration
	TaskInterval  time.Duration
	MaxFileAge    time.Duration
	MaxTaskAge    time.Duration
}

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// NewConfig initializes the configuration from the command line arguments.
func NewConfig(args []string) (*Config, error) {
	c := &Config{}

	app := kingpin.New("savxbot", "Short video download bot service.")
	app.DefaultEnvars()

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("listen-addr", "API server listen address.").Default(":8080").StringVar(&c.ListenAddr)
	app.Flag("temp-dir", "Directory for downloaded files.").Default("temp_videos").StringVar(&c.TempDir)
	app.Flag("max-file-size-mb", "Maximum accepted video size in MB.").Default("50").Int64Var(&c.MaxFileSizeMB)
	app.Flag("max-parallel", "Maximum concurrent downloads.").Default("3").Int64Var(&c.MaxParallel)
	app.Flag("file-cleanup-interval", "Cadence of the file eviction loop.").Default("1h").DurationVar(&c.FileInterval)
	app.Flag("task-cleanup-interval", "Cadence of the task eviction loop.").Default("30m").DurationVar(&c.TaskInterval)
	app.Flag("max-file-age", "Age after which downloaded files are evicted.").Default("1h").DurationVar(&c.MaxFileAge)
	app.Flag("max-task-age", "Age after which finished tasks are evicted.").Default("1h").DurationVar(&c.MaxTaskAge)

	_, err := app.Parse(args)
	if err != nil {
		return nil, fmt.Errorf("invalid command configuration: %w", err)
	}

	return c, nil
}

// Run runs the main application.
func Run(ctx context.Context, args []string, stderr io.Writer) error {
	config, err := NewConfig(args)
	if err != nil {
		return err
	}

	logger := getLogger(config, stderr)

	// Core collaborators.
	tasks, err := taskmemory.NewStore(taskmemory.StoreConfig{
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task store: %w", err)
	}

	storage, err := storagefs.NewManager(storagefs.ManagerConfig{
		TempDir: config.TempDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create storage manager: %w", err)
	}

	fetcher, err := downloadytdlp.NewFetcher(downloadytdlp.FetcherConfig{
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create fetcher: %w", err)
	}

	downloader, err := download.NewService(download.ServiceConfig{
		Fetcher:     fetcher,
		MaxFileSize: config.MaxFileSizeMB * 1024 * 1024,
		MaxParallel: config.MaxParallel,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create download service: %w", err)
	}

	requests, err := request.NewService(request.ServiceConfig{
		Validator:  validate.NewValidator(),
		Tasks:      tasks,
		Storage:    storage,
		Downloader: downloader,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create request service: %w", err)
	}

	scheduler, err := maintenance.NewScheduler(maintenance.SchedulerConfig{
		Storage:      storage,
		Tasks:        tasks,
		FileInterval: config.FileInterval,
		TaskInterval: config.TaskInterval,
		MaxFileAge:   config.MaxFileAge,
		MaxTaskAge:   config.MaxTaskAge,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create maintenance scheduler: %w", err)
	}

	apiServer, err := server.NewServer(server.Config{
		Requests:  requests,
		Tasks:     tasks,
		Scheduler: scheduler,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create API server: %w", err)
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Maintenance scheduler.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				scheduler.Start()
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				scheduler.Stop()
				cancel()
			},
		)
	}

	// API server.
	{
		httpServer := &http.Server{
			Addr:    config.ListenAddr,
			Handler: apiServer,
		}

		g.Add(
			func() error {
				logger.Infof("API server listening on %s", config.ListenAddr)
				err := httpServer.ListenAndServe()
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("API server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("API server shutdown failed: %v", err)
				}
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(config *Config, stderr io.Writer) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	logrusLog := logrus.New()
	logrusLog.Out = stderr
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	switch config.LoggerType {
	case LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
