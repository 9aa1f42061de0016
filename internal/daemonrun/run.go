package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pagepreview/internal/app"
	"pagepreview/internal/config"
	"pagepreview/internal/daemon"
	"pagepreview/internal/logging"
	"pagepreview/internal/logs"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the pagepreview daemon and blocks until the process receives
// SIGINT or SIGTERM or cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("pagepreviewd-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update pagepreviewd.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)
	pruneRunLogs(logger, cfg, logPath)

	pidPath := filepath.Join(cfg.Paths.DataDir, "pagepreviewd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	a, err := app.New(signalCtx, cfg, app.WithLogger(logger))
	if err != nil {
		logger.Error("assemble pipeline", logging.Error(err))
		return err
	}

	d, err := daemon.New(a)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the api bind address"))
		return err
	}

	<-signalCtx.Done()
	logger.Info("pagepreview daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "pagepreviewd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func pruneRunLogs(logger *slog.Logger, cfg *config.Config, current string) {
	maxAge := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
	removed, err := logs.Prune(cfg.Paths.LogDir, "pagepreviewd-*.log", maxAge, current, time.Now())
	if err != nil {
		logging.WarnWithContext(logger, "log retention incomplete", "log_retention_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir ownership"))
	}
	if len(removed) > 0 {
		logger.Info("pruned old run logs",
			logging.String(logging.FieldEventType, "log_retention"),
			logging.Int("removed", len(removed)))
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("queue_backend", cfg.Queue.Backend),
		logging.String(logging.FieldProcess, cfg.Queue.Process),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("render_endpoint", cfg.Render.Endpoint),
		logging.String("site_url", cfg.Paths.SiteURL),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("sentry_enabled", strings.TrimSpace(cfg.Sentry.DSN) != ""),
	)
}
