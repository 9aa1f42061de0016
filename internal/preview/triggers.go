package preview

import (
	"context"
	"errors"
	"fmt"

	"pagepreview/internal/content"
	"pagepreview/internal/logging"
	"pagepreview/internal/queue"
	"pagepreview/internal/services"
)

// Starter begins background processing of committed batches.
type Starter interface {
	Start(ctx context.Context) error
}

// Triggers turns content events into queued preview work.
type Triggers struct {
	gen     *Generator
	backend queue.Backend
	process string
	runner  Starter
}

// NewTriggers wires gen to the job store and runner for process.
func NewTriggers(gen *Generator, backend queue.Backend, process string, runner Starter) *Triggers {
	return &Triggers{gen: gen, backend: backend, process: process, runner: runner}
}

// BulkResult counts the outcome of a bulk action.
type BulkResult struct {
	Requested int              `json:"requested"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    map[int64]string `json:"errors,omitempty"`
}

// OnContentSaved queues a preview when a saved item is published and of an
// eligible type. It reports whether work was queued.
func (t *Triggers) OnContentSaved(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	item, err := t.gen.content.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if item.Status != content.StatusPublish {
		return false, nil
	}
	current, err := t.gen.settings.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	if !current.AllowsType(item.Type) {
		return false, nil
	}
	if _, err := t.enqueue(ctx, []int64{id}); err != nil {
		return false, err
	}
	return true, nil
}

// BulkCreate queues every id in one batch and starts the runner. It returns
// the number of items queued.
func (t *Triggers) BulkCreate(ctx context.Context, ids []int64) (int, error) {
	return t.enqueue(ctx, ids)
}

// BulkDelete removes the previews of ids one by one, collecting failures
// instead of stopping at the first one.
func (t *Triggers) BulkDelete(ctx context.Context, ids []int64) BulkResult {
	result := BulkResult{Requested: len(ids)}
	for _, id := range ids {
		if err := t.gen.Delete(ctx, id); err != nil {
			result.Failed++
			if result.Errors == nil {
				result.Errors = make(map[int64]string)
			}
			result.Errors[id] = err.Error()
			continue
		}
		result.Succeeded++
	}
	return result
}

// OnContentDeleted removes the preview of a deleted item. It matches
// content.DeleteHook.
func (t *Triggers) OnContentDeleted(ctx context.Context, id int64) error {
	return t.gen.Delete(ctx, id)
}

func (t *Triggers) enqueue(ctx context.Context, ids []int64) (int, error) {
	q := queue.New[int64](t.backend, t.process)
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if err := q.Push(id); err != nil {
			return 0, err
		}
	}
	batch, err := q.Commit(ctx)
	if err != nil {
		return 0, err
	}
	if batch == nil {
		return 0, nil
	}
	logging.WithContext(services.WithBatchID(ctx, batch.ID), t.gen.logger).Info("previews queued",
		logging.String(logging.FieldEventType, "preview_queued"),
		logging.String(logging.FieldProcess, t.process),
		logging.Int("items", len(batch.Items)),
	)
	if t.runner != nil {
		if err := t.runner.Start(ctx); err != nil {
			return len(batch.Items), fmt.Errorf("start runner: %w", err)
		}
	}
	return len(batch.Items), nil
}
