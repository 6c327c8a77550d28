package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/geny-memory/internal/model"
)

// MirrorVersion is the mirror file format version.
const MirrorVersion = 1

// MirrorSnapshot is the self-describing content of the mirror file.
type MirrorSnapshot struct {
	Version     int           `json:"version"`
	SnapshotID  string        `json:"snapshot_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Count       int           `json:"count"`
	Entries     []model.Entry `json:"entries"`
}

// NewSnapshot wraps entries in a snapshot with a fresh id.
func NewSnapshot(entries []model.Entry) *MirrorSnapshot {
	if entries == nil {
		entries = []model.Entry{}
	}
	return &MirrorSnapshot{
		Version:     MirrorVersion,
		SnapshotID:  ulid.Make().String(),
		GeneratedAt: time.Now().UTC(),
		Count:       len(entries),
		Entries:     entries,
	}
}

// Snapshot reads the whole ledger into a mirror snapshot.
func (s *SQLiteStore) Snapshot(ctx context.Context) (*MirrorSnapshot, error) {
	entries, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(entries), nil
}

// FlushMirror rewrites the mirror from the current ledger contents. Calls are
// serialized and each takes its own snapshot, so the last call wins.
func (s *SQLiteStore) FlushMirror(ctx context.Context) (*MirrorSnapshot, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := WriteSnapshot(s.mirrorPath, snap); err != nil {
		return nil, unavailable("flush mirror", err)
	}
	return snap, nil
}

// Swapped out by tests to simulate a crash between write and replace.
var (
	syncFile   = func(f *os.File) error { return f.Sync() }
	renameFile = os.Rename
)

// WriteSnapshot writes snap to a temp file next to path and renames it over
// path. On any failure the temp file is removed and path is left untouched.
func WriteSnapshot(path string, snap *MirrorSnapshot) (err error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mirror: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp mirror: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write temp mirror: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp mirror: %w", err)
	}
	if err = syncFile(tmp); err != nil {
		return fmt.Errorf("sync temp mirror: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp mirror: %w", err)
	}
	if err = renameFile(tmpPath, path); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	return nil
}

// ReadMirror loads and validates a mirror file.
func ReadMirror(path string) (*MirrorSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	return DecodeSnapshot(data)
}

// DecodeSnapshot parses and validates mirror-format JSON.
func DecodeSnapshot(data []byte) (*MirrorSnapshot, error) {
	var snap MirrorSnapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: parse mirror: %v", model.ErrInvalidInput, err)
	}
	for i := range snap.Entries {
		model.ResolveNumbers(snap.Entries[i].Metadata)
	}
	if snap.Version != MirrorVersion {
		return nil, fmt.Errorf("%w: unsupported mirror version %d", model.ErrInvalidInput, snap.Version)
	}
	if snap.Count != len(snap.Entries) {
		return nil, fmt.Errorf("%w: mirror count %d does not match %d entries", model.ErrInvalidInput, snap.Count, len(snap.Entries))
	}
	return &snap, nil
}
