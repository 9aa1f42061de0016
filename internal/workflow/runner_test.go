package workflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pagepreview/internal/queue"
	"pagepreview/internal/services"
	"pagepreview/internal/testsupport"
	"pagepreview/internal/workflow"
)

const process = "test_process"

func newBackend(t *testing.T) *queue.SQLiteBackend {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return queue.NewSQLiteBackend(testsupport.MustOpenDB(t, cfg))
}

func enqueue(t *testing.T, backend queue.Backend, ids ...int64) {
	t.Helper()
	q := queue.New[int64](backend, process)
	for _, id := range ids {
		if err := q.Push(id); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if _, err := q.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type recorder struct {
	mu    sync.Mutex
	calls []int64
}

func (r *recorder) add(id int64) {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls...)
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunOnceProcessesFIFO(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2)
	enqueue(t, backend, 3)

	rec := &recorder{}
	var completed []workflow.Summary
	runner := workflow.New(backend, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		rec.add(id)
		return workflow.Done[int64](), nil
	}, workflow.OnComplete(func(s workflow.Summary) { completed = append(completed, s) }))
	defer runner.Close()

	summary, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Reason != workflow.ReasonComplete || summary.Processed != 3 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if got := rec.snapshot(); !equalIDs(got, []int64{1, 2, 3}) {
		t.Fatalf("expected FIFO order, got %v", got)
	}
	if pending, _ := backend.Pending(context.Background(), process); pending != 0 {
		t.Fatalf("expected empty queue, pending=%d", pending)
	}
	if running, _ := runner.IsRunning(context.Background()); running {
		t.Fatal("expected lock released after run")
	}
	if len(completed) != 1 || completed[0].Processed != 3 {
		t.Fatalf("expected one completion hook with 3 processed, got %#v", completed)
	}
}

func TestItemFailuresDoNotAbortBatch(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3, 4)

	rec := &recorder{}
	var itemErrors []workflow.ItemError
	runner := workflow.New(backend, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		rec.add(id)
		switch id {
		case 2:
			return workflow.Done[int64](), services.Wrap(services.ErrRenderService, "render", "post", "boom", nil)
		case 3:
			panic("task exploded")
		}
		return workflow.Done[int64](), nil
	}, workflow.OnItemError(func(_ context.Context, e workflow.ItemError) { itemErrors = append(itemErrors, e) }))
	defer runner.Close()

	summary, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Processed != 2 || summary.Failed != 2 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if got := rec.snapshot(); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("expected all items attempted, got %v", got)
	}
	if len(itemErrors) != 2 {
		t.Fatalf("expected 2 item errors, got %d", len(itemErrors))
	}
	if !errors.Is(itemErrors[0].Err, services.ErrRenderService) {
		t.Fatalf("expected render error first, got %v", itemErrors[0].Err)
	}
	if string(itemErrors[1].Payload) != "3" {
		t.Fatalf("expected panic item payload 3, got %s", itemErrors[1].Payload)
	}
}

type pass struct {
	ID   int64 `json:"id"`
	Pass int   `json:"pass"`
}

func TestRequeueAppendsToTail(t *testing.T) {
	backend := newBackend(t)
	q := queue.New[pass](backend, process)
	_ = q.Push(pass{ID: 1})
	_ = q.Push(pass{ID: 2})
	if _, err := q.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var mu sync.Mutex
	var seen []pass
	runner := workflow.New(backend, process, func(_ context.Context, p pass) (workflow.Outcome[pass], error) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
		if p.Pass < 1 {
			p.Pass++
			return workflow.Requeue(p), nil
		}
		return workflow.Done[pass](), nil
	})
	defer runner.Close()

	summary, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Requeued != 2 || summary.Processed != 2 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	want := []pass{{1, 0}, {2, 0}, {1, 1}, {2, 1}}
	if len(seen) != len(want) {
		t.Fatalf("expected %d executions, got %#v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("execution %d = %#v, want %#v", i, seen[i], want[i])
		}
	}
}

// crashingBackend fails the first checkpoint, simulating a process killed
// after the first item ran but before its progress was saved.
type crashingBackend struct {
	queue.Backend
	failed atomic.Bool
}

func (c *crashingBackend) SaveBatch(ctx context.Context, batch *queue.Batch) error {
	if c.failed.CompareAndSwap(false, true) {
		return errors.New("process killed")
	}
	return c.Backend.SaveBatch(ctx, batch)
}

func TestCrashAfterFirstItemResumesFromLastCheckpoint(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3)

	rec := &recorder{}
	task := func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		rec.add(id)
		return workflow.Done[int64](), nil
	}

	crashing := workflow.New[int64](&crashingBackend{Backend: backend}, process, task)
	summary, err := crashing.RunOnce(context.Background())
	crashing.Close()
	if err == nil {
		t.Fatal("expected checkpoint failure")
	}
	if summary.Reason != workflow.ReasonCheckpointFailed {
		t.Fatalf("unexpected reason %q", summary.Reason)
	}
	if running, _ := crashing.IsRunning(context.Background()); running {
		t.Fatal("expected lock released after aborted run")
	}
	if pending, _ := backend.Pending(context.Background(), process); pending != 3 {
		t.Fatalf("expected last persisted batch intact, pending=%d", pending)
	}

	restarted := workflow.New[int64](backend, process, task)
	defer restarted.Close()
	if _, err := restarted.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce after restart: %v", err)
	}
	if got := rec.snapshot(); !equalIDs(got, []int64{1, 1, 2, 3}) {
		t.Fatalf("expected item 1 reprocessed then 2 and 3, got %v", got)
	}
	if pending, _ := backend.Pending(context.Background(), process); pending != 0 {
		t.Fatalf("expected queue drained, pending=%d", pending)
	}
}

func TestConcurrentStartIsNoop(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var active, maxActive atomic.Int32
	rec := &recorder{}

	runner := workflow.New(backend, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		rec.add(id)
		if id == 1 {
			entered <- struct{}{}
			<-release
		}
		return workflow.Done[int64](), nil
	})
	defer runner.Close()

	ctx := context.Background()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Start(ctx); err != nil {
				t.Errorf("concurrent Start returned %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := runner.RunOnce(ctx); !errors.Is(err, services.ErrLockContention) {
		t.Fatalf("expected ErrLockContention from RunOnce, got %v", err)
	}
	if running, _ := runner.IsRunning(ctx); !running {
		t.Fatal("expected runner to hold the lock")
	}

	close(release)
	waitFor(t, "queue drained", func() bool {
		pending, _ := backend.Pending(ctx, process)
		running, _ := runner.IsRunning(ctx)
		return pending == 0 && !running
	})

	if got := rec.snapshot(); !equalIDs(got, []int64{1, 2, 3}) {
		t.Fatalf("expected each item exactly once, got %v", got)
	}
	if maxActive.Load() != 1 {
		t.Fatalf("expected a single execution stream, saw %d concurrent tasks", maxActive.Load())
	}
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

func TestTimeBudgetPausesAndResumes(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3, 4)

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	completed := make(chan workflow.Summary, 1)

	runner := workflow.New(backend, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		clock.Advance(time.Second)
		rec.add(id)
		return workflow.Done[int64](), nil
	},
		workflow.WithClock(clock.Now),
		workflow.WithTimeBudget(1500*time.Millisecond),
		workflow.WithPauseDelay(0),
		workflow.WithMemoryLimit(0),
		workflow.OnComplete(func(s workflow.Summary) { completed <- s }),
	)
	defer runner.Close()

	summary, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !summary.Paused || summary.Reason != workflow.ReasonTimeBudget || summary.Processed != 2 {
		t.Fatalf("expected pause after two items, got %#v", summary)
	}

	select {
	case total := <-completed:
		if total.Processed != 4 {
			t.Fatalf("expected completion to report all 4 items, got %#v", total)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("paused run was not resumed")
	}
	if got := rec.snapshot(); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("unexpected execution order %v", got)
	}
}

func TestMemoryPressurePauses(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3)

	const limit = 100 << 20
	runner := workflow.New(backend, process, func(context.Context, int64) (workflow.Outcome[int64], error) {
		return workflow.Done[int64](), nil
	},
		workflow.WithMemoryLimit(limit),
		workflow.WithMemorySampler(func() uint64 { return limit * 95 / 100 }),
		workflow.WithPauseDelay(time.Hour),
	)
	defer runner.Close()

	summary, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Reason != workflow.ReasonMemory || summary.Processed != 1 {
		t.Fatalf("expected memory pause after first item, got %#v", summary)
	}
	if pending, _ := backend.Pending(context.Background(), process); pending != 2 {
		t.Fatalf("expected remaining items persisted, pending=%d", pending)
	}
	if running, _ := runner.IsRunning(context.Background()); running {
		t.Fatal("expected lock released while paused")
	}
}

func TestCancelDropsBatchesAndStopsAfterCurrentItem(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	rec := &recorder{}
	runner := workflow.New(backend, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		rec.add(id)
		if id == 1 {
			entered <- struct{}{}
			<-release
		}
		return workflow.Done[int64](), nil
	})
	defer runner.Close()

	ctx := context.Background()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered

	removed, err := runner.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one batch removed, got %d", removed)
	}
	if running, _ := runner.IsRunning(ctx); running {
		t.Fatal("expected lock cleared by cancel")
	}

	close(release)
	waitFor(t, "run to stop", func() bool {
		status, err := runner.Status(ctx)
		return err == nil && status.LastRun != nil
	})

	status, _ := runner.Status(ctx)
	if status.LastRun.Reason != workflow.ReasonCancelled {
		t.Fatalf("expected cancelled run, got %#v", status.LastRun)
	}
	if got := rec.snapshot(); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected only the in-flight item to run, got %v", got)
	}
	if status.Pending != 0 {
		t.Fatalf("expected cancelled batch to stay deleted, pending=%d", status.Pending)
	}
}

// cancelOnLockCheck runs cancel once, right after the runner confirms it
// still owns the lock and before it saves its checkpoint.
type cancelOnLockCheck struct {
	queue.Backend
	fired  atomic.Bool
	cancel func()
}

func (c *cancelOnLockCheck) LockHolder(ctx context.Context, key string) (*queue.Lock, error) {
	holder, err := c.Backend.LockHolder(ctx, key)
	if c.cancel != nil && c.fired.CompareAndSwap(false, true) {
		c.cancel()
	}
	return holder, err
}

func TestCancelBetweenLockCheckAndCheckpointKeepsBatchDeleted(t *testing.T) {
	backend := newBackend(t)
	enqueue(t, backend, 1, 2, 3)

	rec := &recorder{}
	wrapped := &cancelOnLockCheck{Backend: backend}
	runner := workflow.New(wrapped, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		rec.add(id)
		return workflow.Done[int64](), nil
	})
	defer runner.Close()

	ctx := context.Background()
	var cancelErr error
	wrapped.cancel = func() { _, cancelErr = runner.Cancel(ctx) }

	summary, err := runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if cancelErr != nil {
		t.Fatalf("Cancel: %v", cancelErr)
	}
	if summary.Reason != workflow.ReasonCancelled {
		t.Fatalf("expected cancelled run, got %q", summary.Reason)
	}
	if got := rec.snapshot(); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected only the first item to run, got %v", got)
	}
	if pending, _ := backend.Pending(ctx, process); pending != 0 {
		t.Fatalf("cancelled batch written back, pending=%d", pending)
	}
}

func TestHealthCheckRestartsAbandonedQueue(t *testing.T) {
	backend := newBackend(t)
	ctx := context.Background()
	rec := &recorder{}
	runner := workflow.New(backend, process, func(_ context.Context, id int64) (workflow.Outcome[int64], error) {
		rec.add(id)
		return workflow.Done[int64](), nil
	})
	defer runner.Close()

	if runner.HealthCheck(ctx) {
		t.Fatal("expected no restart for an empty queue")
	}

	enqueue(t, backend, 5, 6)
	ok, err := backend.TryLock(ctx, queue.LockKey(process), "other-node", time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	if runner.HealthCheck(ctx) {
		t.Fatal("expected no restart while another node holds the lock")
	}
	if err := backend.ForceUnlock(ctx, queue.LockKey(process)); err != nil {
		t.Fatalf("ForceUnlock: %v", err)
	}

	if !runner.HealthCheck(ctx) {
		t.Fatal("expected restart for an abandoned queue")
	}
	waitFor(t, "queue drained", func() bool {
		pending, _ := backend.Pending(ctx, process)
		return pending == 0
	})
	if got := rec.snapshot(); !equalIDs(got, []int64{5, 6}) {
		t.Fatalf("unexpected executions %v", got)
	}
}
