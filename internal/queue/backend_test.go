package queue_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"pagepreview/internal/queue"
	"pagepreview/internal/testsupport"
)

type backendHarness struct {
	backend queue.Backend
	advance func(time.Duration)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSQLiteHarness(t *testing.T) backendHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return backendHarness{
		backend: queue.NewSQLiteBackend(db, queue.WithSQLiteClock(clock.Now)),
		advance: clock.Advance,
	}
}

func newRedisHarness(t *testing.T) backendHarness {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	backend := queue.NewRedisBackend(client, "test")
	t.Cleanup(func() { _ = backend.Close() })
	return backendHarness{backend: backend, advance: srv.FastForward}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, h backendHarness)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteHarness(t)) })
	t.Run("redis", func(t *testing.T) { fn(t, newRedisHarness(t)) })
}

func makeBatch(process string, created time.Time, ids ...int64) *queue.Batch {
	batch := &queue.Batch{ID: process + "-" + created.Format("150405.000"), Process: process, CreatedAt: created, UpdatedAt: created}
	for _, id := range ids {
		payload, _ := json.Marshal(id)
		batch.Items = append(batch.Items, queue.Item{ID: string(payload), Payload: payload, EnqueuedAt: created})
	}
	return batch
}

func TestBackendBatchLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h backendHarness) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		older := makeBatch("shots", base, 1, 2, 3)
		newer := makeBatch("shots", base.Add(time.Second), 4)
		other := makeBatch("other", base, 9)
		for _, batch := range []*queue.Batch{older, newer, other} {
			if err := h.backend.SaveBatch(ctx, batch); err != nil {
				t.Fatalf("SaveBatch: %v", err)
			}
		}

		pending, err := h.backend.Pending(ctx, "shots")
		if err != nil || pending != 4 {
			t.Fatalf("Pending = %d, %v; want 4", pending, err)
		}

		next, err := h.backend.NextBatch(ctx, "shots")
		if err != nil {
			t.Fatalf("NextBatch: %v", err)
		}
		if next == nil || next.ID != older.ID || len(next.Items) != 3 {
			t.Fatalf("expected oldest batch, got %#v", next)
		}

		// Checkpoint: drop the head and re-save under the same ID.
		next.Items = next.Items[1:]
		if err := h.backend.SaveBatch(ctx, next); err != nil {
			t.Fatalf("SaveBatch checkpoint: %v", err)
		}
		again, err := h.backend.NextBatch(ctx, "shots")
		if err != nil {
			t.Fatalf("NextBatch: %v", err)
		}
		if again.ID != older.ID || len(again.Items) != 2 || string(again.Items[0].Payload) != "2" {
			t.Fatalf("checkpoint did not keep order, got %#v", again)
		}

		// Saving an empty batch removes it.
		again.Items = nil
		if err := h.backend.SaveBatch(ctx, again); err != nil {
			t.Fatalf("SaveBatch empty: %v", err)
		}
		batches, err := h.backend.ListBatches(ctx, "shots")
		if err != nil {
			t.Fatalf("ListBatches: %v", err)
		}
		if len(batches) != 1 || batches[0].ID != newer.ID {
			t.Fatalf("expected only newer batch, got %#v", batches)
		}

		removed, err := h.backend.DeleteProcess(ctx, "shots")
		if err != nil || removed != 1 {
			t.Fatalf("DeleteProcess = %d, %v", removed, err)
		}
		if next, err := h.backend.NextBatch(ctx, "shots"); err != nil || next != nil {
			t.Fatalf("expected no batches, got %#v, %v", next, err)
		}
		if pending, _ := h.backend.Pending(ctx, "other"); pending != 1 {
			t.Fatalf("other process should be untouched, pending=%d", pending)
		}
	})
}

func TestBackendLocking(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h backendHarness) {
		ctx := context.Background()
		key := queue.LockKey("shots")

		ok, err := h.backend.TryLock(ctx, key, "a", time.Minute)
		if err != nil || !ok {
			t.Fatalf("first TryLock = %v, %v", ok, err)
		}
		ok, err = h.backend.TryLock(ctx, key, "b", time.Minute)
		if err != nil || ok {
			t.Fatalf("contended TryLock = %v, %v; want false", ok, err)
		}

		holder, err := h.backend.LockHolder(ctx, key)
		if err != nil || holder == nil || holder.Owner != "a" {
			t.Fatalf("LockHolder = %#v, %v", holder, err)
		}

		// Release by a non-owner leaves the lock in place.
		if err := h.backend.Unlock(ctx, key, "b"); err != nil {
			t.Fatalf("Unlock by non-owner: %v", err)
		}
		if holder, _ := h.backend.LockHolder(ctx, key); holder == nil {
			t.Fatal("lock released by non-owner")
		}

		if err := h.backend.Unlock(ctx, key, "a"); err != nil {
			t.Fatalf("Unlock: %v", err)
		}
		if holder, _ := h.backend.LockHolder(ctx, key); holder != nil {
			t.Fatalf("expected lock released, got %#v", holder)
		}

		// Expired locks can be taken over.
		if ok, _ := h.backend.TryLock(ctx, key, "a", time.Second); !ok {
			t.Fatal("expected lock")
		}
		h.advance(2 * time.Second)
		if holder, _ := h.backend.LockHolder(ctx, key); holder != nil {
			t.Fatalf("expected expired lock to be invisible, got %#v", holder)
		}
		if ok, err := h.backend.TryLock(ctx, key, "b", time.Minute); err != nil || !ok {
			t.Fatalf("TryLock after expiry = %v, %v", ok, err)
		}

		if err := h.backend.ForceUnlock(ctx, key); err != nil {
			t.Fatalf("ForceUnlock: %v", err)
		}
		if holder, _ := h.backend.LockHolder(ctx, key); holder != nil {
			t.Fatal("expected force unlock to clear the lock")
		}
	})
}
