package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	dedup_key  TEXT UNIQUE,
	payload    BLOB,
	attempts   INTEGER NOT NULL DEFAULT 0,
	run_at     INTEGER NOT NULL,
	done       INTEGER NOT NULL DEFAULT 0,
	done_at    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS tasks_due ON tasks (done, run_at, id);
`

// SQLiteQueue Queue in a SQLite table, usually sharing the boundary store file
type SQLiteQueue struct {
	mu    sync.Mutex
	db    *sql.DB
	sugar *zap.SugaredLogger
}

var _ Queue = (*SQLiteQueue)(nil)

// NewSQLiteQueue creates the tasks table in db, the caller owns db
func NewSQLiteQueue(ctx context.Context, db *sql.DB, sugar *zap.SugaredLogger) (*SQLiteQueue, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("task queue: init schema: %w", err)
	}
	return &SQLiteQueue{db: db, sugar: sugar}, nil
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, kind, dedupKey string, payload []byte, runAt time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dedup := sql.NullString{String: dedupKey, Valid: dedupKey != ""}
	res, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO tasks (kind, dedup_key, payload, run_at) VALUES (?, ?, ?, ?)",
		kind, dedup, payload, runAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("enqueue %s %s: %w", kind, dedupKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue %s %s: %w", kind, dedupKey, err)
	}
	return n > 0, nil
}

func (q *SQLiteQueue) Claim(ctx context.Context, now time.Time, visibility time.Duration) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	defer tx.Rollback()

	var (
		t     Task
		dedup sql.NullString
		runAt int64
	)
	err = tx.QueryRowContext(ctx,
		"SELECT id, kind, dedup_key, payload, attempts, run_at FROM tasks WHERE done = 0 AND run_at <= ? ORDER BY run_at, id LIMIT 1",
		now.UnixNano()).Scan(&t.ID, &t.Kind, &dedup, &t.Payload, &t.Attempts, &runAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}

	t.DedupKey = dedup.String
	t.Attempts++
	t.RunAt = now.Add(visibility)
	if _, err := tx.ExecContext(ctx, "UPDATE tasks SET attempts = ?, run_at = ? WHERE id = ?",
		t.Attempts, t.RunAt.UnixNano(), t.ID); err != nil {
		return nil, fmt.Errorf("claim %d: %w", t.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim %d: %w", t.ID, err)
	}
	return &t, nil
}

func (q *SQLiteQueue) Ack(ctx context.Context, id int64, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.db.ExecContext(ctx, "UPDATE tasks SET done = 1, done_at = ? WHERE id = ?", now.UnixNano(), id); err != nil {
		return fmt.Errorf("ack %d: %w", id, err)
	}
	return nil
}

func (q *SQLiteQueue) Nack(ctx context.Context, id int64, retryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.db.ExecContext(ctx, "UPDATE tasks SET run_at = ? WHERE id = ? AND done = 0", retryAt.UnixNano(), id); err != nil {
		return fmt.Errorf("nack %d: %w", id, err)
	}
	return nil
}

func (q *SQLiteQueue) Pending(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE done = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("pending: %w", err)
	}
	return n, nil
}

func (q *SQLiteQueue) Purge(ctx context.Context, before time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx, "DELETE FROM tasks WHERE done = 1 AND done_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return int(n), nil
}

// Close is a no-op, the database belongs to the caller
func (q *SQLiteQueue) Close() error {
	return nil
}
