package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"pagepreview/internal/app"
	"pagepreview/internal/logging"
	"pagepreview/internal/preflight"
	"pagepreview/internal/workflow"
)

// Daemon runs the preview pipeline in the background and enforces
// single-instance execution.
type Daemon struct {
	app    *app.App
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	checks []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Queue        workflow.Status
	Checks       []preflight.Result
}

// New constructs a daemon around an assembled application.
func New(a *app.App) (*Daemon, error) {
	if a == nil || a.Config == nil || a.Runner == nil {
		return nil, errors.New("daemon requires an assembled application")
	}
	lockPath := a.Config.LockPath()
	d := &Daemon{
		app:      a,
		logger:   logging.NewComponentLogger(a.Logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(a.Config, d, a.Logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, resumes pending work, and starts the
// health tick and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pagepreview daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.refreshChecks(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	if err := d.app.Runner.Start(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "initial queue resume failed", "daemon_resume_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the health tick will retry"))
	}
	interval := d.app.Config.HealthCheckInterval()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.app.Runner.Watch(runCtx, interval)
	}()

	d.running.Store(true)
	d.logger.Info("pagepreview daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("health_interval", interval),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Stop stops the API server and health tick and releases the daemon lock.
// A run in progress finishes its current item before the runner exits.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("pagepreview daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the application.
func (d *Daemon) Close() error {
	d.Stop()
	return d.app.Close()
}

// Addr returns the bound API address, or "" when the API is disabled or not
// started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	queueStatus, err := d.app.Runner.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	d.mu.Lock()
	checks := append([]preflight.Result(nil), d.checks...)
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.app.Config.DatabasePath(),
		LockFilePath: d.lockPath,
		Queue:        queueStatus,
		Checks:       checks,
	}, nil
}

func (d *Daemon) refreshChecks(ctx context.Context) {
	results := preflight.RunAll(ctx, d.app.Config)
	for _, r := range results {
		switch {
		case !r.Passed:
			logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail))
		case r.Warning:
			d.logger.Warn("preflight warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_warning"))
		}
	}
	d.mu.Lock()
	d.checks = results
	d.mu.Unlock()
}
