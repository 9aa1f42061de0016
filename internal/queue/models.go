package queue

import (
	"encoding/json"
	"time"
)

// Item is one unit of queued work. Payload is the JSON encoding of the typed
// value passed to Queue.Push.
type Item struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Batch is the ordered set of items persisted by one commit.
type Batch struct {
	ID        string    `json:"id"`
	Process   string    `json:"process"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the batch has no remaining items.
func (b *Batch) Empty() bool {
	return b == nil || len(b.Items) == 0
}

// Lock describes the current holder of a process lock.
type Lock struct {
	Key       string
	Owner     string
	ExpiresAt time.Time
}

// LockKey returns the lock key guarding a process queue.
func LockKey(process string) string {
	return process + "_process_lock"
}
