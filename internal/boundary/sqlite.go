package boundary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_boundaries (
	page_index INTEGER PRIMARY KEY,
	start_key  BLOB,
	end_key    BLOB
);
CREATE TABLE IF NOT EXISTS pass_lease (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	generation INTEGER NOT NULL,
	running    INTEGER NOT NULL,
	heartbeat  INTEGER NOT NULL
);
INSERT OR IGNORE INTO pass_lease (id, generation, running, heartbeat) VALUES (1, 0, 0, 0);
`

// SQLiteStore durable boundary table; keys are stored tuple-encoded and
// validated against the index fields on load
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	fields keys.FieldList
	sugar  *zap.SugaredLogger
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLite(path string, fields keys.FieldList, sugar *zap.SugaredLogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("boundary store: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("boundary store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		sugar.Warnw("boundary store: pragma", "error", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boundary store: init schema: %w", err)
	}

	sugar.Infow("boundary store opened", "path", path)
	return &SQLiteStore{db: db, fields: fields, sugar: sugar}, nil
}

// DB exposes the connection so the task queue can share the file
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) decode(pageIndex int64, start, end []byte) (PageBoundary, error) {
	b := PageBoundary{PageIndex: pageIndex}
	var err error
	if b.StartKey, err = keys.DecodeKey(start); err != nil {
		return b, fmt.Errorf("page %d start key: %w", pageIndex, err)
	}
	if b.EndKey, err = keys.DecodeKey(end); err != nil {
		return b, fmt.Errorf("page %d end key: %w", pageIndex, err)
	}
	if err := s.fields.Validate(b.StartKey); err != nil {
		return b, fmt.Errorf("page %d start key: %w", pageIndex, err)
	}
	if err := s.fields.Validate(b.EndKey); err != nil {
		return b, fmt.Errorf("page %d end key: %w", pageIndex, err)
	}
	return b, nil
}

func (s *SQLiteStore) Get(ctx context.Context, pageIndex int64) (PageBoundary, bool, error) {
	var start, end []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT start_key, end_key FROM page_boundaries WHERE page_index = ?", pageIndex).Scan(&start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return PageBoundary{}, false, nil
	}
	if err != nil {
		return PageBoundary{}, false, fmt.Errorf("get page %d: %w", pageIndex, err)
	}
	b, err := s.decode(pageIndex, start, end)
	if err != nil {
		return PageBoundary{}, false, err
	}
	return b, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, b PageBoundary) error {
	if b.PageIndex < 0 {
		return fmt.Errorf("put %s: %w: negative page index", b, keys.ErrValidation)
	}
	if err := s.fields.Validate(b.StartKey); err != nil {
		return fmt.Errorf("put %s: %w", b, err)
	}
	if err := s.fields.Validate(b.EndKey); err != nil {
		return fmt.Errorf("put %s: %w", b, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO page_boundaries (page_index, start_key, end_key) VALUES (?, ?, ?)",
		b.PageIndex, keys.EncodeKey(b.StartKey), keys.EncodeKey(b.EndKey))
	if err != nil {
		return fmt.Errorf("put %s: %w", b, err)
	}
	return nil
}

func (s *SQLiteStore) PatchStart(ctx context.Context, pageIndex int64, start keys.IndexKey) (bool, error) {
	if err := s.fields.Validate(start); err != nil {
		return false, fmt.Errorf("patch page %d: %w", pageIndex, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		"UPDATE page_boundaries SET start_key = ? WHERE page_index = ?", keys.EncodeKey(start), pageIndex)
	if err != nil {
		return false, fmt.Errorf("patch page %d: %w", pageIndex, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("patch page %d: %w", pageIndex, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteAbove(ctx context.Context, pageIndex int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM page_boundaries WHERE page_index > ?", pageIndex)
	if err != nil {
		return 0, fmt.Errorf("delete above %d: %w", pageIndex, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete above %d: %w", pageIndex, err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, bool, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(page_index) FROM page_boundaries").Scan(&last); err != nil {
		return 0, false, fmt.Errorf("count: %w", err)
	}
	if !last.Valid {
		return 0, false, nil
	}
	return last.Int64 + 1, true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]PageBoundary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT page_index, start_key, end_key FROM page_boundaries ORDER BY page_index ASC")
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var res []PageBoundary
	for rows.Next() {
		var (
			pageIndex  int64
			start, end []byte
		)
		if err := rows.Scan(&pageIndex, &start, &end); err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		b, err := s.decode(pageIndex, start, end)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) BeginPass(ctx context.Context, now time.Time, ttl time.Duration) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin pass: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE pass_lease SET generation = generation + 1, running = 1, heartbeat = ? WHERE id = 1 AND (running = 0 OR heartbeat < ?)",
		now.UnixNano(), now.Add(-ttl).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("begin pass: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("begin pass: %w", err)
	}

	var generation uint64
	if err := tx.QueryRowContext(ctx, "SELECT generation FROM pass_lease WHERE id = 1").Scan(&generation); err != nil {
		return 0, fmt.Errorf("begin pass: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("begin pass: generation %d: %w", generation, ErrLeaseHeld)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("begin pass: %w", err)
	}
	return generation, nil
}

func (s *SQLiteStore) Heartbeat(ctx context.Context, generation uint64, now time.Time) error {
	return s.updateLease(ctx, "heartbeat",
		"UPDATE pass_lease SET heartbeat = ? WHERE id = 1 AND running = 1 AND generation = ?",
		generation, now.UnixNano(), generation)
}

func (s *SQLiteStore) EndPass(ctx context.Context, generation uint64) error {
	return s.updateLease(ctx, "end pass",
		"UPDATE pass_lease SET running = 0 WHERE id = 1 AND running = 1 AND generation = ?",
		generation, generation)
}

func (s *SQLiteStore) updateLease(ctx context.Context, op, query string, generation uint64, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, generation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, generation, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, generation, ErrLeaseLost)
	}
	return nil
}

func (s *SQLiteStore) Lease(ctx context.Context) (Lease, error) {
	var (
		l         Lease
		running   int
		heartbeat int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT generation, running, heartbeat FROM pass_lease WHERE id = 1").
		Scan(&l.Generation, &running, &heartbeat)
	if err != nil {
		return Lease{}, fmt.Errorf("lease: %w", err)
	}
	l.Running = running != 0
	l.Heartbeat = time.Unix(0, heartbeat)
	return l, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
