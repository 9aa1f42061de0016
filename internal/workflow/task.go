package workflow

import (
	"context"
	"encoding/json"
	"time"
)

// Outcome tells the runner what to do with an item after its task returns.
type Outcome[T any] struct {
	requeue bool
	payload T
}

// Done drops the item from the batch.
func Done[T any]() Outcome[T] {
	return Outcome[T]{}
}

// Requeue appends payload to the tail of the batch for another pass.
func Requeue[T any](payload T) Outcome[T] {
	return Outcome[T]{requeue: true, payload: payload}
}

// Requeued reports whether the outcome re-enqueues the item.
func (o Outcome[T]) Requeued() bool {
	return o.requeue
}

// Task processes one payload. Returned errors are logged and the item is
// dropped; they never abort the batch.
type Task[T any] func(ctx context.Context, payload T) (Outcome[T], error)

// Stop reasons reported in Summary.Reason.
const (
	ReasonComplete         = "complete"
	ReasonTimeBudget       = "time_budget"
	ReasonMemory           = "memory"
	ReasonCancelled        = "cancelled"
	ReasonLockLost         = "lock_lost"
	ReasonCheckpointFailed = "checkpoint_failed"
	ReasonStoreError       = "store_error"
)

// Summary describes one run, from lock acquisition to release.
type Summary struct {
	Process   string        `json:"process"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Requeued  int           `json:"requeued"`
	Duration  time.Duration `json:"duration"`
	Paused    bool          `json:"paused"`
	Reason    string        `json:"reason"`
	StartedAt time.Time     `json:"started_at"`
}

// ItemError describes a failed item passed to OnItemError hooks.
type ItemError struct {
	Process string
	BatchID string
	ItemID  string
	Payload json.RawMessage
	Err     error
}
