package queue

import (
	"context"
	"time"
)

// Backend persists batches and process locks. Implementations must make each
// method atomic on its own; the runner never needs multi-call transactions.
type Backend interface {
	// SaveBatch inserts or replaces a batch. Saving a batch without items
	// deletes it.
	SaveBatch(ctx context.Context, batch *Batch) error
	// NextBatch returns the oldest batch for process, or nil when none is
	// pending.
	NextBatch(ctx context.Context, process string) (*Batch, error)
	// ListBatches returns every pending batch for process, oldest first.
	ListBatches(ctx context.Context, process string) ([]Batch, error)
	DeleteBatch(ctx context.Context, process, id string) error
	// DeleteProcess removes every batch for process and returns how many were
	// removed.
	DeleteProcess(ctx context.Context, process string) (int, error)
	// Pending counts queued items across all batches of process.
	Pending(ctx context.Context, process string) (int, error)

	// TryLock acquires key for owner without blocking. It reports false when
	// another owner holds an unexpired lock.
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Unlock releases key only if owner still holds it.
	Unlock(ctx context.Context, key, owner string) error
	// ForceUnlock releases key regardless of owner.
	ForceUnlock(ctx context.Context, key string) error
	// LockHolder returns the unexpired lock for key, or nil.
	LockHolder(ctx context.Context, key string) (*Lock, error)

	Close() error
}
