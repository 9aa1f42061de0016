package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagepreview/internal/logging"
	"pagepreview/internal/queue"
	"pagepreview/internal/services"
)

// Runner drains the batches of one process key through a task.
type Runner[T any] struct {
	settings
	backend queue.Backend
	process string
	lockKey string
	task    Task[T]
	logger  *slog.Logger

	stopCtx  context.Context
	stopFunc context.CancelFunc
	wg       sync.WaitGroup

	// checkpointMu orders Cancel against batch saves so a cancelled batch
	// is never written back.
	checkpointMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	cancelGen uint64
	resume    *time.Timer
	carry     *Summary
	last      *Summary
	lastErr   error
}

// New constructs a runner for process. Call Close to stop background work.
func New[T any](backend queue.Backend, process string, task Task[T], opts ...Option) *Runner[T] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	stopCtx, stopFunc := context.WithCancel(context.Background())
	r := &Runner[T]{
		settings: s,
		backend:  backend,
		process:  process,
		lockKey:  queue.LockKey(process),
		task:     task,
		stopCtx:  stopCtx,
		stopFunc: stopFunc,
	}
	r.logger = logging.NewComponentLogger(s.logger, "runner").With(logging.String(logging.FieldProcess, process))
	return r
}

// Process returns the process key this runner drains.
func (r *Runner[T]) Process() string {
	return r.process
}

// Start triggers a background run and returns immediately. When another
// runner holds the process lock Start is a no-op and returns nil.
func (r *Runner[T]) Start(ctx context.Context) error {
	owner, gen, err := r.acquire(ctx)
	if errors.Is(err, services.ErrLockContention) {
		r.logger.Debug("start skipped; batch already in progress",
			logging.String(logging.FieldEventType, "runner_lock_contention"))
		return nil
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = r.backend.Unlock(context.WithoutCancel(ctx), r.lockKey, owner)
		return nil
	}
	r.wg.Add(1)
	r.mu.Unlock()

	runCtx, cancel := r.detach(ctx)
	go func() {
		defer r.wg.Done()
		defer cancel()
		_, _ = r.run(runCtx, owner, gen)
	}()
	return nil
}

// RunOnce performs one run on the calling goroutine. It returns
// ErrLockContention when another runner holds the lock.
func (r *Runner[T]) RunOnce(ctx context.Context) (Summary, error) {
	owner, gen, err := r.acquire(ctx)
	if err != nil {
		return Summary{Process: r.process}, err
	}
	runCtx, cancel := r.detach(ctx)
	defer cancel()
	return r.run(runCtx, owner, gen)
}

// IsRunning reports whether any runner currently holds an unexpired lock for
// the process.
func (r *Runner[T]) IsRunning(ctx context.Context) (bool, error) {
	holder, err := r.backend.LockHolder(ctx, r.lockKey)
	if err != nil {
		return false, err
	}
	return holder != nil, nil
}

// Cancel deletes every pending batch for the process and releases the lock.
// Work already in flight is not interrupted: a local run stops after its
// current item, a run on another node stops once it notices the lock is gone.
func (r *Runner[T]) Cancel(ctx context.Context) (int, error) {
	r.checkpointMu.Lock()
	r.mu.Lock()
	r.cancelGen++
	r.carry = nil
	if r.resume != nil {
		r.resume.Stop()
		r.resume = nil
	}
	r.mu.Unlock()
	r.checkpointMu.Unlock()

	if err := r.backend.ForceUnlock(ctx, r.lockKey); err != nil {
		return 0, err
	}
	removed, err := r.backend.DeleteProcess(ctx, r.process)
	if err != nil {
		return 0, err
	}
	r.logger.Info("queue cancelled",
		logging.Int("batches_removed", removed),
		logging.String(logging.FieldEventType, "queue_cancelled"))
	return removed, nil
}

// Close stops scheduled restarts, interrupts waiting runs, and waits for
// background goroutines to exit.
func (r *Runner[T]) Close() {
	r.mu.Lock()
	r.closed = true
	if r.resume != nil {
		r.resume.Stop()
		r.resume = nil
	}
	r.mu.Unlock()
	r.stopFunc()
	r.wg.Wait()
}

func (r *Runner[T]) acquire(ctx context.Context) (string, uint64, error) {
	r.mu.Lock()
	closed := r.closed
	gen := r.cancelGen
	r.mu.Unlock()
	if closed {
		return "", 0, fmt.Errorf("runner %s closed", r.process)
	}

	owner := uuid.NewString()
	ok, err := r.backend.TryLock(ctx, r.lockKey, owner, r.lockTTL)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, services.Wrap(services.ErrLockContention, "runner", "acquire lock", r.process, nil)
	}
	return owner, gen, nil
}

// detach keeps the caller's values but ties cancellation to Close instead of
// the triggering request.
func (r *Runner[T]) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithProcess(context.WithoutCancel(ctx), r.process)
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.stopCtx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (r *Runner[T]) cancelledSince(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelGen != gen
}

func (r *Runner[T]) scheduleResume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.resume != nil {
		r.resume.Stop()
	}
	r.resume = time.AfterFunc(r.pauseDelay, func() {
		r.mu.Lock()
		r.resume = nil
		r.mu.Unlock()
		if err := r.Start(r.stopCtx); err != nil {
			r.logger.Warn("scheduled restart failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "runner_resume_failed"),
				logging.String(logging.FieldErrorHint, "the health tick will retry"))
		}
	})
}

func (r *Runner[T]) record(summary Summary, err error) {
	r.mu.Lock()
	r.last = &summary
	r.lastErr = err
	r.mu.Unlock()
}
