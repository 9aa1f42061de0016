package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagepreview/internal/services"
)

// Queue buffers typed work items in memory until Commit persists them as a
// single batch under the queue's process name.
type Queue[T any] struct {
	backend Backend
	process string
	now     func() time.Time

	mu    sync.Mutex
	items []Item
}

// New returns a queue writing to backend under process.
func New[T any](backend Backend, process string) *Queue[T] {
	return &Queue[T]{backend: backend, process: process, now: time.Now}
}

// Process returns the process name batches are stored under.
func (q *Queue[T]) Process() string {
	return q.process
}

// Push appends value to the in-memory buffer. Nothing is persisted until
// Commit.
func (q *Queue[T]) Push(value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode queue payload: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Item{
		ID:         uuid.NewString(),
		Payload:    payload,
		EnqueuedAt: q.now().UTC(),
	})
	return nil
}

// Len returns the number of buffered, uncommitted items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Commit persists the buffered items as a new batch and clears the buffer.
// An empty buffer commits nothing and returns a nil batch. When the backend
// fails the buffer is kept so the caller can retry.
func (q *Queue[T]) Commit(ctx context.Context) (*Batch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	now := q.now().UTC()
	batch := &Batch{
		ID:        uuid.NewString(),
		Process:   q.process,
		Items:     append([]Item(nil), q.items...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.backend.SaveBatch(ctx, batch); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "queue", "commit", fmt.Sprintf("save batch for %s", q.process), err)
	}
	q.items = q.items[:0]
	return batch, nil
}

// Decode unmarshals an item's payload into T.
func Decode[T any](item Item) (T, error) {
	var value T
	if err := json.Unmarshal(item.Payload, &value); err != nil {
		return value, fmt.Errorf("decode queue item %s: %w", item.ID, err)
	}
	return value, nil
}
