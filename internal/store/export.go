package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/geny-memory/internal/model"
)

// Import stores entries from a mirror snapshot. Entries already in the ledger
// (same created_at and text) are skipped. Imported entries get fresh ids and
// keep their created_at and metadata. The import is all-or-nothing.
func (s *SQLiteStore) Import(ctx context.Context, entries []model.Entry) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT created_at, text FROM entries`)
	if err != nil {
		return nil, unavailable("load existing", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var createdAt, text string
		if err := rows.Scan(&createdAt, &text); err != nil {
			rows.Close()
			return nil, unavailable("load existing", err)
		}
		existing[createdAt+"\x00"+text] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, unavailable("load existing", err)
	}
	rows.Close()

	now := time.Now().UTC()
	imported := []model.Entry{}
	for i, e := range entries {
		text := model.NormalizeText(e.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: entry %d has empty text", model.ErrInvalidInput, i)
		}
		meta, err := model.NormalizeMetadata(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		metaJSON, err := encodeMetadata(meta)
		if err != nil {
			return nil, err
		}

		createdAt := e.CreatedAt.UTC()
		if createdAt.IsZero() {
			createdAt = now
		}
		key := createdAt.Format(timeLayout) + "\x00" + text
		if existing[key] {
			continue
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (text, metadata, created_at) VALUES (?, ?, ?)`,
			text, metaJSON, createdAt.Format(timeLayout))
		if err != nil {
			return nil, unavailable("import entry", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, unavailable("import entry", err)
		}
		existing[key] = true
		imported = append(imported, model.Entry{
			ID:        id,
			Text:      text,
			Metadata:  meta,
			CreatedAt: createdAt,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return imported, nil
}
