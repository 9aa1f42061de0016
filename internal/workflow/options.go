package workflow

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

const (
	defaultTimeBudget    = 20 * time.Second
	defaultMemoryLimit   = 512 << 20
	defaultLockTTL       = 60 * time.Second
	defaultPauseDelay    = time.Second
	memoryPressureFactor = 0.9
)

type settings struct {
	logger       *slog.Logger
	timeBudget   time.Duration
	memoryLimit  uint64
	lockTTL      time.Duration
	pauseDelay   time.Duration
	memorySample func() uint64
	now          func() time.Time
	onComplete   []func(Summary)
	onItemError  []func(context.Context, ItemError)
}

func defaultSettings() settings {
	return settings{
		timeBudget:   defaultTimeBudget,
		memoryLimit:  defaultMemoryLimit,
		lockTTL:      defaultLockTTL,
		pauseDelay:   defaultPauseDelay,
		memorySample: heapInUse,
		now:          time.Now,
	}
}

// Option configures a Runner.
type Option func(*settings)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithTimeBudget bounds how long one run may process items before pausing.
// Zero disables the time throttle.
func WithTimeBudget(d time.Duration) Option {
	return func(s *settings) { s.timeBudget = d }
}

// WithMemoryLimit sets the heap ceiling in bytes; the runner pauses at 90% of
// it. Zero disables the memory throttle.
func WithMemoryLimit(bytes uint64) Option {
	return func(s *settings) { s.memoryLimit = bytes }
}

// WithLockTTL sets the process lock lifetime. It must exceed the time budget
// so a live runner never loses its lock mid-item.
func WithLockTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithPauseDelay sets how long a paused runner waits before restarting.
func WithPauseDelay(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.pauseDelay = d
		}
	}
}

// WithMemorySampler replaces the heap sampler.
func WithMemorySampler(sample func() uint64) Option {
	return func(s *settings) {
		if sample != nil {
			s.memorySample = sample
		}
	}
}

// WithClock replaces the clock used for the time budget.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// OnComplete registers a hook invoked after a run drains the queue.
func OnComplete(fn func(Summary)) Option {
	return func(s *settings) {
		if fn != nil {
			s.onComplete = append(s.onComplete, fn)
		}
	}
}

// OnItemError registers a hook invoked for every failed item.
func OnItemError(fn func(context.Context, ItemError)) Option {
	return func(s *settings) {
		if fn != nil {
			s.onItemError = append(s.onItemError, fn)
		}
	}
}

func heapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}
