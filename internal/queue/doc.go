// Package queue implements the durable job store: batches of work items keyed
// by a process name, plus the lock primitive that keeps a single runner active
// per process.
//
// Callers buffer items with Queue.Push and persist them with Queue.Commit; each
// commit becomes its own batch, so racing commits never overwrite each other.
// Batches are consumed oldest first by the workflow runner, which re-saves the
// remaining items after every task as its crash-recovery checkpoint.
//
// Two Backend implementations exist: SQLiteBackend for single-node deployments
// sharing the application database, and RedisBackend for deployments where
// several nodes trigger work against the same queue.
package queue
