package workflow

import (
	"context"
	"time"
)

// Status is a snapshot of the runner and its queue.
type Status struct {
	Process   string     `json:"process"`
	Running   bool       `json:"running"`
	LockOwner string     `json:"lock_owner,omitempty"`
	LockUntil *time.Time `json:"lock_until,omitempty"`
	Batches   int        `json:"batches"`
	Pending   int        `json:"pending"`
	LastRun   *Summary   `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Status reports lock, queue depth, and the outcome of the most recent run
// executed by this instance.
func (r *Runner[T]) Status(ctx context.Context) (Status, error) {
	status := Status{Process: r.process}

	holder, err := r.backend.LockHolder(ctx, r.lockKey)
	if err != nil {
		return status, err
	}
	if holder != nil {
		status.Running = true
		status.LockOwner = holder.Owner
		if !holder.ExpiresAt.IsZero() {
			until := holder.ExpiresAt
			status.LockUntil = &until
		}
	}

	batches, err := r.backend.ListBatches(ctx, r.process)
	if err != nil {
		return status, err
	}
	status.Batches = len(batches)
	for _, batch := range batches {
		status.Pending += len(batch.Items)
	}

	r.mu.Lock()
	if r.last != nil {
		last := *r.last
		status.LastRun = &last
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	r.mu.Unlock()
	return status, nil
}
