package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pagepreview/internal/database"
	"pagepreview/internal/services"
)

// SQLiteBackend stores batches in the queue_batches table and locks in
// queue_locks of the shared application database.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteOption customizes a SQLiteBackend.
type SQLiteOption func(*SQLiteBackend)

// WithSQLiteClock overrides the clock used for lock expiry.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(b *SQLiteBackend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewSQLiteBackend wraps an already-migrated database handle. The caller
// keeps ownership of db.
func NewSQLiteBackend(db *sql.DB, opts ...SQLiteOption) *SQLiteBackend {
	b := &SQLiteBackend{db: db, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return services.Wrap(services.ErrPersistence, "queue", op, "", err)
}

func (b *SQLiteBackend) SaveBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return nil
	}
	if batch.Empty() {
		return b.DeleteBatch(ctx, batch.Process, batch.ID)
	}
	encoded, err := json.Marshal(batch.Items)
	if err != nil {
		return fmt.Errorf("encode batch items: %w", err)
	}
	_, err = database.Exec(ctx, b.db, `INSERT INTO queue_batches (id, process, items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at`,
		batch.ID, batch.Process, string(encoded), batch.CreatedAt.UnixMilli(), batch.UpdatedAt.UnixMilli())
	return wrapStore("save batch", err)
}

const batchColumns = "id, process, items, created_at, updated_at"

func scanBatch(scanner interface{ Scan(...any) error }) (*Batch, error) {
	var (
		batch              Batch
		items              string
		created, updatedAt int64
	)
	if err := scanner.Scan(&batch.ID, &batch.Process, &items, &created, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &batch.Items); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", batch.ID, err)
	}
	batch.CreatedAt = time.UnixMilli(created).UTC()
	batch.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &batch, nil
}

func (b *SQLiteBackend) NextBatch(ctx context.Context, process string) (*Batch, error) {
	row := b.db.QueryRowContext(ctx,
		"SELECT "+batchColumns+" FROM queue_batches WHERE process = ? ORDER BY seq LIMIT 1", process)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStore("next batch", err)
	}
	return batch, nil
}

func (b *SQLiteBackend) ListBatches(ctx context.Context, process string) ([]Batch, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT "+batchColumns+" FROM queue_batches WHERE process = ? ORDER BY seq", process)
	if err != nil {
		return nil, wrapStore("list batches", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, wrapStore("list batches", err)
		}
		batches = append(batches, *batch)
	}
	return batches, wrapStore("list batches", rows.Err())
}

func (b *SQLiteBackend) DeleteBatch(ctx context.Context, process, id string) error {
	_, err := database.Exec(ctx, b.db, "DELETE FROM queue_batches WHERE process = ? AND id = ?", process, id)
	return wrapStore("delete batch", err)
}

func (b *SQLiteBackend) DeleteProcess(ctx context.Context, process string) (int, error) {
	res, err := database.Exec(ctx, b.db, "DELETE FROM queue_batches WHERE process = ?", process)
	if err != nil {
		return 0, wrapStore("delete process", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStore("delete process", err)
	}
	return int(affected), nil
}

func (b *SQLiteBackend) Pending(ctx context.Context, process string) (int, error) {
	var count int
	err := b.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(json_array_length(items)), 0) FROM queue_batches WHERE process = ?", process).Scan(&count)
	if err != nil {
		return 0, wrapStore("count pending", err)
	}
	return count, nil
}

// TryLock claims key in a single upsert: the conflicting row is only
// overwritten when it has expired, so RowsAffected tells whether we won.
func (b *SQLiteBackend) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	now := b.now()
	res, err := database.Exec(ctx, b.db, `INSERT INTO queue_locks (lock_key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(lock_key) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE queue_locks.expires_at <= ?`,
		key, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, wrapStore("acquire lock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStore("acquire lock", err)
	}
	return affected > 0, nil
}

func (b *SQLiteBackend) Unlock(ctx context.Context, key, owner string) error {
	_, err := database.Exec(ctx, b.db, "DELETE FROM queue_locks WHERE lock_key = ? AND owner = ?", key, owner)
	return wrapStore("release lock", err)
}

func (b *SQLiteBackend) ForceUnlock(ctx context.Context, key string) error {
	_, err := database.Exec(ctx, b.db, "DELETE FROM queue_locks WHERE lock_key = ?", key)
	return wrapStore("force release lock", err)
}

func (b *SQLiteBackend) LockHolder(ctx context.Context, key string) (*Lock, error) {
	var (
		lock    Lock
		expires int64
	)
	err := b.db.QueryRowContext(ctx,
		"SELECT lock_key, owner, expires_at FROM queue_locks WHERE lock_key = ? AND expires_at > ?",
		key, b.now().UnixMilli()).Scan(&lock.Key, &lock.Owner, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStore("read lock", err)
	}
	lock.ExpiresAt = time.UnixMilli(expires).UTC()
	return &lock, nil
}

// Close is a no-op; the database handle belongs to the caller.
func (b *SQLiteBackend) Close() error {
	return nil
}
