package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pagepreview/internal/config"
	"pagepreview/internal/content"
	"pagepreview/internal/database"
	"pagepreview/internal/errreport"
	"pagepreview/internal/logging"
	"pagepreview/internal/notifications"
	"pagepreview/internal/preview"
	"pagepreview/internal/queue"
	"pagepreview/internal/render"
	"pagepreview/internal/services"
	"pagepreview/internal/settings"
	"pagepreview/internal/storage"
	"pagepreview/internal/workflow"
)

// s3Prefix is the key prefix of preview objects in the bucket.
const s3Prefix = "page-previews"

// App holds every long-lived handle of the pipeline.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *sql.DB
	Backend   queue.Backend
	Content   *content.Store
	Settings  *settings.Store
	Files     storage.Filesystem
	Renderer  render.Service
	Generator *preview.Generator
	Runner    *workflow.Runner[int64]
	Triggers  *preview.Triggers
	Notifier  notifications.Service
	Reporter  errreport.Reporter

	failMu   sync.Mutex
	failures []string
	lastFail string
}

// maxListedFailures caps the content IDs named in one failure notification.
const maxListedFailures = 10

// Option customizes New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	renderer   render.Service
	files      storage.Filesystem
	notifier   notifications.Service
	reporter   errreport.Reporter
	extensions preview.Extensions
	clock      func() time.Time
	runnerOpts []workflow.Option
}

// WithLogger sets the base logger. Defaults to logging.NewFromConfig.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRenderer replaces the HTTP render client.
func WithRenderer(renderer render.Service) Option {
	return func(o *options) { o.renderer = renderer }
}

// WithFilesystem replaces the configured image storage.
func WithFilesystem(files storage.Filesystem) Option {
	return func(o *options) { o.files = files }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) { o.notifier = notifier }
}

// WithReporter replaces the Sentry reporter.
func WithReporter(reporter errreport.Reporter) Option {
	return func(o *options) { o.reporter = reporter }
}

// WithExtensions registers generator filters.
func WithExtensions(ext preview.Extensions) Option {
	return func(o *options) { o.extensions = ext }
}

// WithClock sets the clock used for cache-busting URLs and runner timing.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithRunnerOptions appends runner options after the configured ones.
func WithRunnerOptions(opts ...workflow.Option) Option {
	return func(o *options) { o.runnerOpts = append(o.runnerOpts, opts...) }
}

// New builds the pipeline. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "app", "init", "config is required", nil)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	reporter := o.reporter
	if reporter == nil {
		var err error
		reporter, err = errreport.New(cfg)
		if err != nil {
			return nil, err
		}
	}
	if _, noop := reporter.(errreport.Noop); !noop {
		logger = logging.TeeLogger(logger, errreport.NewHandler(reporter))
	}

	db, err := database.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db, Reporter: reporter}

	a.openBackend()
	if err := a.openFiles(ctx, o.files); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Content = content.NewStore(db, cfg.Paths.SiteURL)
	a.Settings = settings.NewStore(db, settings.NetworkSite)
	a.Renderer = o.renderer
	if a.Renderer == nil {
		a.Renderer = render.NewFromConfig(cfg)
	}
	a.Notifier = o.notifier
	if a.Notifier == nil {
		a.Notifier = notifications.NewService(cfg)
	}

	a.Generator = preview.NewGenerator(cfg, preview.Dependencies{
		Content:  a.Content,
		Settings: a.Settings,
		Renderer: a.Renderer,
		Files:    a.Files,
		Logger:   logger,
		Clock:    o.clock,
	}, o.extensions)

	runnerOpts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithTimeBudget(cfg.TimeBudget()),
		workflow.WithMemoryLimit(cfg.MemoryLimitBytes()),
		workflow.WithLockTTL(cfg.LockTTL()),
		workflow.WithPauseDelay(cfg.PauseDelay()),
		workflow.OnComplete(a.queueCompleted),
		workflow.OnItemError(a.itemFailed),
	}
	if o.clock != nil {
		runnerOpts = append(runnerOpts, workflow.WithClock(o.clock))
	}
	runnerOpts = append(runnerOpts, o.runnerOpts...)
	a.Runner = workflow.New(a.Backend, cfg.Queue.Process, a.Generator.Task(), runnerOpts...)

	a.Triggers = preview.NewTriggers(a.Generator, a.Backend, cfg.Queue.Process, a.Runner)
	a.Content.OnDelete(a.Triggers.OnContentDeleted)
	return a, nil
}

func (a *App) openBackend() {
	switch a.Config.Queue.Backend {
	case config.QueueRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		a.Backend = queue.NewRedisBackend(client, a.Config.Redis.Prefix)
	default:
		a.Backend = queue.NewSQLiteBackend(a.DB)
	}
}

func (a *App) openFiles(ctx context.Context, files storage.Filesystem) error {
	if files != nil {
		a.Files = files
		return nil
	}
	if a.Config.Storage.Backend == config.StorageS3 {
		s3, err := storage.NewS3FromConfig(ctx, a.Config.Storage, s3Prefix)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "app", "storage", "s3 client", err)
		}
		a.Files = s3
		return nil
	}
	a.Files = storage.NewLocal(a.Config.Paths.PreviewDir)
	return nil
}

func (a *App) queueCompleted(summary workflow.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := a.Notifier.Publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	})
	if err != nil {
		a.Logger.Warn("queue completion notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"))
	}

	ids, lastErr := a.takeFailures()
	if len(ids) == 0 {
		return
	}
	listed := ids
	if len(listed) > maxListedFailures {
		listed = listed[:maxListedFailures]
	}
	err = a.Notifier.Publish(ctx, notifications.EventPreviewFailed, notifications.Payload{
		"content_id": strings.Join(listed, ", "),
		"count":      len(ids),
		"error":      lastErr,
	})
	if err != nil {
		a.Logger.Warn("failure notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"))
	}
}

// itemFailed reports a non-terminal failure and records it for the
// notification sent when the queue drains.
func (a *App) itemFailed(ctx context.Context, failure workflow.ItemError) {
	if services.IsTerminal(failure.Err) {
		return
	}
	id := string(failure.Payload)
	tags := map[string]string{
		logging.FieldProcess: failure.Process,
		logging.FieldBatchID: failure.BatchID,
		"item_id":            failure.ItemID,
	}
	tags[logging.FieldContentID] = id
	a.Reporter.Report(ctx, failure.Err, tags)
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		id = failure.ItemID
	}

	a.failMu.Lock()
	a.failures = append(a.failures, id)
	a.lastFail = failure.Err.Error()
	a.failMu.Unlock()
}

func (a *App) takeFailures() ([]string, string) {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	ids, last := a.failures, a.lastFail
	a.failures, a.lastFail = nil, ""
	return ids, last
}

// Close stops the runner and releases the job store and database.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Runner != nil {
		a.Runner.Close()
	}
	var errs []error
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	a.Reporter.Flush(2 * time.Second)
	return errors.Join(errs...)
}
