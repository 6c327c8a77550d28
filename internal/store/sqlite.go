package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/geny-memory/internal/model"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite as the authoritative ledger and a
// JSON file as the mirror.
type SQLiteStore struct {
	db         *sql.DB
	dbPath     string
	mirrorPath string

	// mu serializes writers; snapshots hold it shared so they never observe
	// an append that has not committed.
	mu      sync.RWMutex
	flushMu sync.Mutex
}

// NewSQLiteStore opens or creates the ledger at dbPath. Parent directories of
// both dbPath and mirrorPath are created if absent.
func NewSQLiteStore(dbPath, mirrorPath string) (*SQLiteStore, error) {
	if dbPath == "" || mirrorPath == "" {
		return nil, fmt.Errorf("%w: store and mirror paths are required", model.ErrStoreUnavailable)
	}
	if filepath.Clean(dbPath) == filepath.Clean(mirrorPath) {
		return nil, fmt.Errorf("%w: store and mirror must be different files", model.ErrStoreUnavailable)
	}
	for _, p := range []string{dbPath, mirrorPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, unavailable("create dir", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(full)")
	if err != nil {
		return nil, unavailable("open db", err)
	}

	s := &SQLiteStore{
		db:         db,
		dbPath:     dbPath,
		mirrorPath: mirrorPath,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		text       TEXT NOT NULL,
		metadata   TEXT,
		created_at TEXT NOT NULL,
		indexed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at DESC, id DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the ledger path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// MirrorPath returns the mirror file path.
func (s *SQLiteStore) MirrorPath() string { return s.mirrorPath }

func (s *SQLiteStore) Append(ctx context.Context, text string, metadata map[string]any) (*model.Entry, error) {
	text = model.NormalizeText(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text must not be empty", model.ErrInvalidInput)
	}
	meta, err := model.NormalizeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	metaJSON, err := encodeMetadata(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (text, metadata, created_at) VALUES (?, ?, ?)`,
		text, metaJSON, now.Format(timeLayout))
	if err != nil {
		return nil, unavailable("insert entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, unavailable("insert entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}

	return &model.Entry{
		ID:        id,
		Text:      text,
		Metadata:  meta,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, metadata, created_at, indexed_at FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, unavailable("get entry", err)
	}
	return &e, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context) ([]model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.query(ctx, "get all",
		`SELECT id, text, metadata, created_at, indexed_at FROM entries ORDER BY id ASC`)
}

func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]model.Entry, error) {
	if n <= 0 {
		return []model.Entry{}, nil
	}
	return s.query(ctx, "recent",
		`SELECT id, text, metadata, created_at, indexed_at FROM entries
		 ORDER BY created_at DESC, id DESC LIMIT ?`, n)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkIndexed(ctx context.Context, upTo int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET indexed_at = ? WHERE id <= ?`, at.UTC().Format(timeLayout), upTo)
	if err != nil {
		return 0, unavailable("mark indexed", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) StampIndexed(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("stamp indexed", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE entries SET indexed_at = ? WHERE id = ?`)
	if err != nil {
		return 0, unavailable("stamp indexed", err)
	}
	defer stmt.Close()

	ts := at.UTC().Format(timeLayout)
	var total int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, ts, id)
		if err != nil {
			return 0, unavailable("stamp indexed", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("stamp indexed", err)
	}
	return total, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, op, query string, args ...any) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.Entry, error) {
	var e model.Entry
	var meta, indexedAt sql.NullString
	var createdAt string

	if err := row.Scan(&e.ID, &e.Text, &meta, &createdAt, &indexedAt); err != nil {
		return e, err
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return e, fmt.Errorf("entry %d: created_at: %w", e.ID, err)
	}
	e.CreatedAt = t.UTC()

	if indexedAt.Valid {
		t, err := time.Parse(timeLayout, indexedAt.String)
		if err != nil {
			return e, fmt.Errorf("entry %d: indexed_at: %w", e.ID, err)
		}
		t = t.UTC()
		e.IndexedAt = &t
	}
	if meta.Valid {
		md, err := model.DecodeMetadata([]byte(meta.String))
		if err != nil {
			return e, fmt.Errorf("entry %d: metadata: %w", e.ID, err)
		}
		e.Metadata = md
	}

	return e, nil
}

func encodeMetadata(meta map[string]any) (*string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", model.ErrInvalidInput, err)
	}
	str := string(b)
	return &str, nil
}

// unavailable classifies a storage failure. Context cancellation is passed
// through unchanged so callers can tell it apart from a broken medium.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrStoreUnavailable, op, err)
}
