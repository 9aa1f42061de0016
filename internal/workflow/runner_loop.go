package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pagepreview/internal/logging"
	"pagepreview/internal/queue"
	"pagepreview/internal/services"
)

// run drains batches while owner holds the process lock. The lock is always
// released before returning.
func (r *Runner[T]) run(ctx context.Context, owner string, gen uint64) (summary Summary, err error) {
	start := r.now()
	summary = Summary{Process: r.process, StartedAt: start.UTC()}
	logger := logging.WithContext(ctx, r.logger)

	defer func() {
		summary.Duration = r.now().Sub(start)
		summary.Paused = summary.Reason == ReasonTimeBudget || summary.Reason == ReasonMemory
		if unlockErr := r.backend.Unlock(context.WithoutCancel(ctx), r.lockKey, owner); unlockErr != nil {
			logger.Warn("release process lock failed; lock will expire on its own",
				logging.Error(unlockErr),
				logging.String(logging.FieldEventType, "runner_unlock_failed"),
				logging.String(logging.FieldErrorHint, "check queue backend connectivity"))
		}
		r.record(summary, err)
		r.finish(logger, summary)
	}()

	for {
		if ctx.Err() != nil {
			summary.Reason = ReasonCancelled
			return summary, nil
		}
		batch, loadErr := r.backend.NextBatch(ctx, r.process)
		if loadErr != nil {
			summary.Reason = ReasonStoreError
			logging.ErrorWithContext(logger, "load batch failed", "runner_load_failed",
				logging.Error(loadErr),
				logging.String(logging.FieldErrorHint, "check queue backend connectivity"))
			return summary, loadErr
		}
		if batch == nil {
			summary.Reason = ReasonComplete
			return summary, nil
		}
		if summary.Processed+summary.Failed+summary.Requeued > 0 {
			if reason := r.throttle(start); reason != "" {
				summary.Reason = reason
				return summary, nil
			}
		}

		reason, batchErr := r.drain(services.WithBatchID(ctx, batch.ID), batch, owner, gen, start, &summary)
		if batchErr != nil {
			summary.Reason = reason
			return summary, batchErr
		}
		if reason != "" {
			summary.Reason = reason
			return summary, nil
		}
	}
}

// drain processes one batch item by item. A non-empty reason stops the run.
func (r *Runner[T]) drain(ctx context.Context, batch *queue.Batch, owner string, gen uint64, start time.Time, summary *Summary) (string, error) {
	logger := logging.WithContext(ctx, r.logger)
	for !batch.Empty() {
		item := batch.Items[0]
		batch.Items = batch.Items[1:]

		outcome, taskErr := r.execute(ctx, item)
		switch {
		case taskErr != nil:
			summary.Failed++
			r.itemFailed(ctx, logger, batch.ID, item, taskErr)
		case outcome.requeue:
			payload, encErr := json.Marshal(outcome.payload)
			if encErr != nil {
				summary.Failed++
				r.itemFailed(ctx, logger, batch.ID, item, fmt.Errorf("encode requeued payload: %w", encErr))
				break
			}
			summary.Requeued++
			batch.Items = append(batch.Items, queue.Item{ID: item.ID, Payload: payload, EnqueuedAt: r.now().UTC()})
		default:
			summary.Processed++
		}

		if r.cancelledSince(gen) {
			logger.Info("run stopped after cancellation", logging.String(logging.FieldEventType, "runner_cancelled"))
			return ReasonCancelled, nil
		}
		if !r.stillOwner(ctx, logger, owner) {
			return ReasonLockLost, nil
		}

		saved, err := r.checkpoint(ctx, batch, gen)
		if err != nil {
			logging.ErrorWithContext(logger, "checkpoint failed; run aborted", "runner_checkpoint_failed",
				logging.Error(err),
				logging.Int("remaining", len(batch.Items)),
				logging.String(logging.FieldErrorHint, "the last saved batch will be reprocessed on the next start"))
			return ReasonCheckpointFailed, err
		}
		if !saved {
			logger.Info("run stopped after cancellation", logging.String(logging.FieldEventType, "runner_cancelled"))
			return ReasonCancelled, nil
		}

		if batch.Empty() {
			break
		}
		if reason := r.throttle(start); reason != "" {
			return reason, nil
		}
	}
	return "", nil
}

// checkpoint saves batch unless Cancel ran since the run started. It reports
// whether the batch was written.
func (r *Runner[T]) checkpoint(ctx context.Context, batch *queue.Batch, gen uint64) (bool, error) {
	r.checkpointMu.Lock()
	defer r.checkpointMu.Unlock()
	if r.cancelledSince(gen) {
		return false, nil
	}
	batch.UpdatedAt = r.now().UTC()
	return true, r.backend.SaveBatch(ctx, batch)
}

// execute runs the task for one item, converting panics into errors.
func (r *Runner[T]) execute(ctx context.Context, item queue.Item) (outcome Outcome[T], err error) {
	payload, err := queue.Decode[T](item)
	if err != nil {
		return outcome, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panic: %v", rec)
		}
	}()
	return r.task(ctx, payload)
}

func (r *Runner[T]) itemFailed(ctx context.Context, logger *slog.Logger, batchID string, item queue.Item, err error) {
	attrs := []logging.Attr{
		logging.String("item_id", item.ID),
		logging.String("payload", string(item.Payload)),
		logging.Error(err),
		logging.ErrorKind(err),
	}
	if services.IsTerminal(err) {
		logger.Info("item skipped", logging.Args(attrs...)...)
	} else {
		logging.WarnWithContext(logger, "item failed; dropped from batch", "runner_item_failed", attrs...)
	}
	for _, hook := range r.onItemError {
		hook(ctx, ItemError{Process: r.process, BatchID: batchID, ItemID: item.ID, Payload: item.Payload, Err: err})
	}
}

// stillOwner detects a lock removed by Cancel on another node. Backend errors
// are treated as still owning so transient failures do not stop the run.
func (r *Runner[T]) stillOwner(ctx context.Context, logger *slog.Logger, owner string) bool {
	holder, err := r.backend.LockHolder(ctx, r.lockKey)
	if err != nil {
		logger.Debug("lock check failed", logging.Error(err))
		return true
	}
	if holder == nil || holder.Owner != owner {
		logger.Info("process lock lost; stopping run", logging.String(logging.FieldEventType, "runner_lock_lost"))
		return false
	}
	return true
}

func (r *Runner[T]) throttle(start time.Time) string {
	if r.timeBudget > 0 && r.now().Sub(start) >= r.timeBudget {
		return ReasonTimeBudget
	}
	if r.memoryLimit > 0 && float64(r.memorySample()) >= float64(r.memoryLimit)*memoryPressureFactor {
		return ReasonMemory
	}
	return ""
}

func (r *Runner[T]) finish(logger *slog.Logger, summary Summary) {
	attrs := []logging.Attr{
		logging.String("reason", summary.Reason),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("requeued", summary.Requeued),
		logging.Duration("duration", summary.Duration),
	}
	switch summary.Reason {
	case ReasonTimeBudget, ReasonMemory:
		r.carryOver(summary)
		logger.Info("run paused; restart scheduled", logging.Args(append(attrs,
			logging.Duration("resume_in", r.pauseDelay),
			logging.String(logging.FieldEventType, "runner_paused"))...)...)
		r.scheduleResume()
	case ReasonComplete:
		logger.Info("queue drained", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "runner_complete"))...)...)
		total := r.takeCarry(summary)
		if total.Processed+total.Failed+total.Requeued == 0 {
			return
		}
		for _, hook := range r.onComplete {
			hook(total)
		}
	default:
		logger.Info("run stopped", logging.Args(attrs...)...)
	}
}

// carryOver accumulates counters across paused slices so completion hooks
// report the whole drain.
func (r *Runner[T]) carryOver(summary Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.carry == nil {
		carry := summary
		r.carry = &carry
		return
	}
	r.carry.Processed += summary.Processed
	r.carry.Failed += summary.Failed
	r.carry.Requeued += summary.Requeued
	r.carry.Duration += summary.Duration
}

func (r *Runner[T]) takeCarry(summary Summary) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.carry == nil {
		return summary
	}
	total := *r.carry
	r.carry = nil
	total.Processed += summary.Processed
	total.Failed += summary.Failed
	total.Requeued += summary.Requeued
	total.Duration += summary.Duration
	total.Reason = summary.Reason
	total.Paused = false
	return total
}
