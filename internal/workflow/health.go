package workflow

import (
	"context"
	"time"

	"pagepreview/internal/logging"
)

// Watch restarts the runner every interval when batches are pending but no
// runner holds the lock, which is how work abandoned by a crashed process
// resumes. It blocks until ctx is done. A non-positive interval returns
// immediately.
func (r *Runner[T]) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCtx.Done():
			return
		case <-ticker.C:
			r.HealthCheck(ctx)
		}
	}
}

// HealthCheck performs one Watch tick and reports whether a run was started.
func (r *Runner[T]) HealthCheck(ctx context.Context) bool {
	pending, err := r.backend.Pending(ctx, r.process)
	if err != nil {
		logging.WarnWithContext(r.logger, "health check could not read queue", "runner_health_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue backend connectivity"))
		return false
	}
	if pending == 0 {
		return false
	}
	running, err := r.IsRunning(ctx)
	if err != nil || running {
		return false
	}
	r.logger.Info("restarting idle queue",
		logging.Int("pending", pending),
		logging.String(logging.FieldEventType, "runner_health_restart"))
	if err := r.Start(ctx); err != nil {
		logging.WarnWithContext(r.logger, "health restart failed", "runner_health_failed", logging.Error(err))
		return false
	}
	return true
}
