package store

import (
	"context"
	"database/sql"
	"os"
	"time"
)

// Stats holds ledger and mirror statistics.
type Stats struct {
	StorePath       string     `json:"store_path"`
	StoreSizeBytes  int64      `json:"store_size_bytes"`
	MirrorPath      string     `json:"mirror_path"`
	MirrorSizeBytes int64      `json:"mirror_size_bytes"`
	Entries         int        `json:"entries"`
	IndexedEntries  int        `json:"indexed_entries"`
	LastEntryAt     *time.Time `json:"last_entry_at,omitempty"`
}

// Stats returns ledger statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{StorePath: s.dbPath, MirrorPath: s.mirrorPath}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.StoreSizeBytes = info.Size()
	}
	if info, err := os.Stat(s.mirrorPath); err == nil {
		st.MirrorSizeBytes = info.Size()
	}

	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(indexed_at), MAX(created_at) FROM entries`).
		Scan(&st.Entries, &st.IndexedEntries, &last)
	if err != nil {
		return nil, unavailable("stats", err)
	}
	if last.Valid {
		if t, err := time.Parse(timeLayout, last.String); err == nil {
			t = t.UTC()
			st.LastEntryAt = &t
		}
	}

	return st, nil
}
