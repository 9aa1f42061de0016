// Package workflow runs queued batches through a task function.
//
// A Runner owns one process key. Start acquires the process lock without
// blocking, then drains batches oldest first on a background goroutine,
// executing one item at a time and re-saving the remaining batch after every
// item so a crash resumes from the last checkpoint. Two throttles bound each
// run: a wall-clock time budget and a heap ceiling. When either trips the
// runner persists its position, releases the lock, and schedules a follow-up
// Start after a short delay. Watch provides the periodic health tick that
// restarts abandoned queues after a crash.
//
// Tasks are plain closures over a typed payload, so any job type can reuse the
// same queue, lock, and throttle machinery.
package workflow
