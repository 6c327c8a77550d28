// Package engine wires the ledger, the inverted index, search and the
// background maintainer into the ingest/search/status surface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/geny-memory/internal/index"
	"github.com/rcliao/geny-memory/internal/maintainer"
	"github.com/rcliao/geny-memory/internal/metrics"
	"github.com/rcliao/geny-memory/internal/model"
	"github.com/rcliao/geny-memory/internal/search"
	"github.com/rcliao/geny-memory/internal/store"
)

// contextCandidates is how many ranked results Context considers for packing.
const contextCandidates = 50

// Config configures an Engine.
type Config struct {
	StorePath  string
	MirrorPath string

	MaintenanceEnabled  bool
	MaintenanceInterval time.Duration
	WatchMirror         bool

	CacheEnabled    bool
	CacheMaxEntries int64

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Status summarizes the engine for callers and the status command.
type Status struct {
	EntryCount           int              `json:"entry_count"`
	IndexedCount         int              `json:"indexed_count"`
	LastMaintenanceCycle *time.Time       `json:"last_maintenance_cycle"`
	MaintenanceEnabled   bool             `json:"maintenance_enabled"`
	MaintenanceState     maintainer.State `json:"maintenance_state"`
	LastCycleError       string           `json:"last_cycle_error,omitempty"`
	StorePath            string           `json:"store_path"`
	MirrorPath           string           `json:"mirror_path"`
	StoreSizeBytes       int64            `json:"store_size_bytes"`
	MirrorSizeBytes      int64            `json:"mirror_size_bytes"`
}

// Engine is safe for concurrent use.
type Engine struct {
	store   store.Store
	cache   *search.Cache
	maint   *maintainer.Maintainer
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// idx is replaced wholesale on rebuild. swapMu is held shared by inline
	// updates and exclusively by the swap, so no inline update lands in an
	// instance that is about to be discarded.
	idx    atomic.Pointer[index.Index]
	swapMu sync.RWMutex

	// gen changes whenever idx content changes; it keys the search cache.
	gen atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// Open opens the SQLite ledger at cfg.StorePath and builds the engine on it.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	st, err := store.NewSQLiteStore(cfg.StorePath, cfg.MirrorPath)
	if err != nil {
		return nil, err
	}
	e, err := New(ctx, st, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return e, nil
}

// New builds an engine over st, loading the index from the ledger. The
// engine owns st and closes it on Close.
func New(ctx context.Context, st store.Store, cfg Config) (*Engine, error) {
	e := &Engine{
		store:   st,
		logger:  cfg.Logger.With().Str("component", "engine").Logger(),
		metrics: cfg.Metrics,
	}

	entries, err := st.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if n := len(entries); n > 0 {
		now := time.Now().UTC()
		if _, err := st.MarkIndexed(ctx, entries[n-1].ID, now); err != nil {
			e.logger.Warn().Err(err).Msg("stamping cold build failed")
		} else {
			for i := range entries {
				entries[i].IndexedAt = &now
			}
		}
	}
	e.idx.Store(index.Build(entries))
	e.metrics.SetEntries(len(entries))

	if cfg.CacheEnabled {
		size := cfg.CacheMaxEntries
		if size <= 0 {
			size = 1024
		}
		c, err := search.NewCache(size, cfg.Metrics)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}

	mcfg := maintainer.Config{
		Enabled:  cfg.MaintenanceEnabled,
		Interval: cfg.MaintenanceInterval,
		Source:   st,
		Indexer:  e,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	}
	if cfg.WatchMirror {
		mcfg.WatchPath = cfg.MirrorPath
	}
	m, err := maintainer.New(mcfg)
	if err != nil {
		e.cache.Close()
		return nil, err
	}
	e.maint = m

	e.logger.Info().
		Int("entries", len(entries)).
		Str("store", cfg.StorePath).
		Str("mirror", cfg.MirrorPath).
		Msg("engine opened")
	return e, nil
}

// Start starts the background maintainer if it is enabled.
func (e *Engine) Start() error {
	return e.maint.Start()
}

// Close stops the maintainer, waiting for an in-flight cycle up to ctx, and
// closes the store. Safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		var errs []error
		if err := e.maint.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop maintainer: %w", err))
		}
		e.cache.Close()
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		e.closeErr = errors.Join(errs...)
		e.logger.Debug().Msg("engine closed")
	})
	return e.closeErr
}

// Ingest durably stores text and makes it searchable before returning.
func (e *Engine) Ingest(ctx context.Context, text string, metadata map[string]any) (*model.Entry, error) {
	start := time.Now()

	entry, err := e.store.Append(ctx, text, metadata)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidInput) {
			e.logger.Error().Err(err).Msg("ingest failed")
		}
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := e.store.StampIndexed(ctx, []int64{entry.ID}, now); err != nil {
		e.logger.Warn().Err(err).Int64("entry_id", entry.ID).Msg("stamping indexed_at failed")
	} else {
		entry.IndexedAt = &now
	}
	n := e.updateIndex([]model.Entry{*entry})

	d := time.Since(start)
	e.metrics.ObserveIngest(d)
	e.metrics.SetEntries(n)
	e.logger.Debug().
		Int64("entry_id", entry.ID).
		Dur("duration", d).
		Msg("ingested")
	return entry, nil
}

// updateIndex adds entries to the current index and returns its size.
func (e *Engine) updateIndex(entries []model.Entry) int {
	e.swapMu.RLock()
	defer e.swapMu.RUnlock()

	ix := e.idx.Load()
	for _, en := range entries {
		ix.Update(en.Clone())
	}
	e.gen.Add(1)
	return ix.Len()
}

// Search returns up to k entries ranked against query. With no matches (or a
// query with no terms) it returns the k most recent entries.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]search.Result, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", model.ErrInvalidInput, k)
	}
	if k == 0 {
		return []search.Result{}, nil
	}

	start := time.Now()
	defer func() { e.metrics.ObserveSearch(time.Since(start)) }()

	gen := e.gen.Load()
	if cached, ok := e.cache.Get(gen, query, k); ok {
		return cached, nil
	}

	results := search.Rank(e.idx.Load(), query, k)
	if len(results) == 0 {
		recent, err := e.store.Recent(ctx, k)
		if err != nil {
			return nil, err
		}
		results = search.FromEntries(recent)
	}

	e.cache.Put(gen, query, k, results)
	return results, nil
}

// Reindex builds a fresh index from a ledger snapshot and swaps it in.
// Entries indexed inline after the snapshot are carried over so the swap
// never drops them.
func (e *Engine) Reindex(ctx context.Context, entries []model.Entry) error {
	now := time.Now().UTC()
	stamped := make([]model.Entry, len(entries))
	var snapMax int64
	for i, en := range entries {
		stamped[i] = en.Clone()
		stamped[i].IndexedAt = &now
		if en.ID > snapMax {
			snapMax = en.ID
		}
	}
	fresh := index.Build(stamped)

	e.swapMu.Lock()
	prev := e.idx.Load()
	caught := prev.Since(snapMax)
	for _, en := range caught {
		fresh.Update(en)
	}
	e.idx.Store(fresh)
	e.gen.Add(1)
	e.swapMu.Unlock()

	e.logger.Debug().
		Int("entries", len(entries)).
		Int("caught_up", len(caught)).
		Msg("index rebuilt")

	if snapMax > 0 {
		if _, err := e.store.MarkIndexed(ctx, snapMax, now); err != nil {
			return fmt.Errorf("mark indexed: %w", err)
		}
	}
	return nil
}

// Get returns one entry by id.
func (e *Engine) Get(ctx context.Context, id int64) (*model.Entry, error) {
	return e.store.Get(ctx, id)
}

// Recent returns the n newest entries, newest first.
func (e *Engine) Recent(ctx context.Context, n int) ([]model.Entry, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: n must not be negative, got %d", model.ErrInvalidInput, n)
	}
	return e.store.Recent(ctx, n)
}

// Status reports counts, paths and maintenance state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	ms := e.maint.Status()

	return &Status{
		EntryCount:           st.Entries,
		IndexedCount:         e.idx.Load().Len(),
		LastMaintenanceCycle: ms.LastCycle,
		MaintenanceEnabled:   ms.Enabled,
		MaintenanceState:     ms.State,
		LastCycleError:       ms.LastError,
		StorePath:            st.StorePath,
		MirrorPath:           st.MirrorPath,
		StoreSizeBytes:       st.StoreSizeBytes,
		MirrorSizeBytes:      st.MirrorSizeBytes,
	}, nil
}

// Flush rewrites the mirror from the ledger now.
func (e *Engine) Flush(ctx context.Context) (*store.MirrorSnapshot, error) {
	snap, err := e.store.FlushMirror(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("mirror flush failed")
		return nil, err
	}
	e.logger.Debug().Str("snapshot_id", snap.SnapshotID).Int("count", snap.Count).Msg("mirror flushed")
	return snap, nil
}

// Maintain runs one maintenance cycle synchronously, even when scheduled
// maintenance is disabled.
func (e *Engine) Maintain(ctx context.Context) (*maintainer.CycleReport, error) {
	return e.maint.RunOnce(ctx)
}

// Snapshot returns the whole ledger in mirror format.
func (e *Engine) Snapshot(ctx context.Context) (*store.MirrorSnapshot, error) {
	return e.store.Snapshot(ctx)
}

// Export writes a mirror-format snapshot to path using the same atomic
// replace as the mirror. The ledger file itself cannot be a target.
func (e *Engine) Export(ctx context.Context, path string) (*store.MirrorSnapshot, error) {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" || filepath.Clean(path) == filepath.Clean(st.StorePath) {
		return nil, fmt.Errorf("%w: invalid export path %q", model.ErrInvalidInput, path)
	}

	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.WriteSnapshot(path, snap); err != nil {
		return nil, fmt.Errorf("%w: export: %w", model.ErrStoreUnavailable, err)
	}
	e.logger.Info().Str("path", path).Int("count", snap.Count).Msg("exported")
	return snap, nil
}

// Import appends snapshot entries not already in the ledger and indexes
// them. The mirror is flushed afterwards; a flush failure is only logged.
func (e *Engine) Import(ctx context.Context, snap *store.MirrorSnapshot) ([]model.Entry, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", model.ErrInvalidInput)
	}
	imported, err := e.store.Import(ctx, snap.Entries)
	if err != nil {
		return nil, err
	}
	if len(imported) == 0 {
		return imported, nil
	}

	now := time.Now().UTC()
	ids := make([]int64, len(imported))
	for i := range imported {
		ids[i] = imported[i].ID
	}
	if _, err := e.store.StampIndexed(ctx, ids, now); err != nil {
		e.logger.Warn().Err(err).Msg("stamping imported entries failed")
	} else {
		for i := range imported {
			imported[i].IndexedAt = &now
		}
	}
	n := e.updateIndex(imported)
	e.metrics.SetEntries(n)

	if _, err := e.Flush(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("mirror flush after import failed")
	}

	e.logger.Info().
		Int("imported", len(imported)).
		Int("skipped", len(snap.Entries)-len(imported)).
		Msg("import complete")
	return imported, nil
}

// Context packs the best matches for query into a character budget.
func (e *Engine) Context(ctx context.Context, query string, budget int) (*search.ContextResult, error) {
	if budget < 0 {
		return nil, fmt.Errorf("%w: budget must not be negative, got %d", model.ErrInvalidInput, budget)
	}
	results, err := e.Search(ctx, query, contextCandidates)
	if err != nil {
		return nil, err
	}
	return search.Pack(query, results, budget), nil
}
