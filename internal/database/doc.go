// Package database opens the shared SQLite database used by the queue, content,
// and settings stores, applies embedded goose migrations, and provides the
// busy-retry helpers every store wraps its writes in.
package database
