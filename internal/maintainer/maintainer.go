// Package maintainer runs periodic reconciliation cycles: snapshot the ledger,
// rebuild the index from it, and rewrite the mirror.
package maintainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rcliao/geny-memory/internal/metrics"
	"github.com/rcliao/geny-memory/internal/model"
	"github.com/rcliao/geny-memory/internal/store"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 300 * time.Second

// State is the phase of the maintenance cycle.
type State string

const (
	StateIdle         State = "idle"
	StateSnapshotting State = "snapshotting"
	StateRebuilding   State = "rebuilding"
	StateFlushing     State = "flushing"
)

// Source is the ledger side of a cycle.
type Source interface {
	GetAll(ctx context.Context) ([]model.Entry, error)
	FlushMirror(ctx context.Context) (*store.MirrorSnapshot, error)
}

// Indexer rebuilds and swaps in a fresh index from a ledger snapshot.
type Indexer interface {
	Reindex(ctx context.Context, entries []model.Entry) error
}

// Config configures a Maintainer.
type Config struct {
	Enabled  bool
	Interval time.Duration

	// WatchPath, when set, is the mirror file to watch for external removal
	// or rewrite. A change triggers an immediate cycle.
	WatchPath string

	Source  Source
	Indexer Indexer
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// CycleReport describes a successful cycle.
type CycleReport struct {
	ID               string        `json:"cycle_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Entries          int           `json:"entries"`
	MirrorSnapshotID string        `json:"mirror_snapshot_id"`
}

// Status is a point-in-time view of the maintainer.
type Status struct {
	Enabled   bool          `json:"enabled"`
	Running   bool          `json:"running"`
	State     State         `json:"state"`
	Interval  time.Duration `json:"interval"`
	LastCycle *time.Time    `json:"last_cycle,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Cycles    uint64        `json:"cycles"`
	Failures  uint64        `json:"failures"`
}

// Maintainer schedules reconciliation cycles. At most one cycle runs at a time.
type Maintainer struct {
	cfg    Config
	logger zerolog.Logger

	// cycleMu is held for the duration of a cycle.
	cycleMu sync.Mutex

	mu        sync.Mutex
	state     State
	lastCycle *time.Time
	lastErr   error
	cycles    uint64
	failures  uint64
	started   bool
	stopped   bool
	cron      *cron.Cron
	watcher   *MirrorWatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a maintainer. It does nothing until Start.
func New(cfg Config) (*Maintainer, error) {
	if cfg.Source == nil {
		return nil, errors.New("maintainer: source is required")
	}
	if cfg.Indexer == nil {
		return nil, errors.New("maintainer: indexer is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Maintainer{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "maintainer").Logger(),
		state:  StateIdle,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start schedules cycles every Interval. When disabled it starts nothing.
func (m *Maintainer) Start() error {
	if !m.cfg.Enabled {
		m.logger.Debug().Msg("maintenance disabled")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return nil
	}

	cl := cronLogger{m.logger}
	m.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	m.cron.Schedule(cron.Every(m.cfg.Interval), cron.FuncJob(func() {
		m.RunOnce(m.ctx)
	}))

	if m.cfg.WatchPath != "" {
		w, err := NewMirrorWatcher(m.cfg.WatchPath, m.logger, func() { m.Trigger() })
		if err != nil {
			return fmt.Errorf("watch mirror: %w", err)
		}
		m.watcher = w
	}

	m.cron.Start()
	m.started = true

	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Bool("watch_mirror", m.watcher != nil).
		Msg("maintainer started")
	return nil
}

// Trigger runs a cycle in the background. It reports false when the
// maintainer is disabled or stopped.
func (m *Maintainer) Trigger() bool {
	if !m.cfg.Enabled {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.RunOnce(m.ctx)
	}()
	return true
}

// RunOnce runs one cycle synchronously. It returns ErrCycleInProgress if a
// cycle is already running, and an ErrMaintenanceCycleFailed-wrapped error
// if any phase fails. Works whether or not the maintainer is enabled.
func (m *Maintainer) RunOnce(ctx context.Context) (*CycleReport, error) {
	if !m.cycleMu.TryLock() {
		m.cfg.Metrics.RecordCycle("skipped", 0)
		m.logger.Debug().Msg("maintenance cycle skipped, one already running")
		return nil, model.ErrCycleInProgress
	}
	defer m.cycleMu.Unlock()

	report := &CycleReport{
		ID:        ulid.Make().String(),
		StartedAt: time.Now().UTC(),
	}
	log := m.logger.With().Str("cycle_id", report.ID).Logger()
	log.Debug().Msg("maintenance cycle started")

	err := m.cycle(ctx, report)
	report.Duration = time.Since(report.StartedAt)

	m.mu.Lock()
	m.state = StateIdle
	if err != nil {
		err = fmt.Errorf("%w: %w", model.ErrMaintenanceCycleFailed, err)
		m.lastErr = err
		m.failures++
	} else {
		end := time.Now().UTC()
		m.lastCycle = &end
		m.lastErr = nil
		m.cycles++
	}
	m.mu.Unlock()

	if err != nil {
		m.cfg.Metrics.RecordCycle("failed", report.Duration)
		log.Error().Err(err).Dur("duration", report.Duration).Msg("maintenance cycle failed")
		return nil, err
	}

	m.cfg.Metrics.RecordCycle("success", report.Duration)
	log.Info().
		Int("entries", report.Entries).
		Str("snapshot_id", report.MirrorSnapshotID).
		Dur("duration", report.Duration).
		Msg("maintenance cycle complete")
	return report, nil
}

func (m *Maintainer) cycle(ctx context.Context, report *CycleReport) error {
	m.setState(StateSnapshotting)
	entries, err := m.cfg.Source.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	m.setState(StateRebuilding)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	if err := m.cfg.Indexer.Reindex(ctx, entries); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	m.setState(StateFlushing)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	snap, err := m.cfg.Source.FlushMirror(ctx)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	report.Entries = len(entries)
	report.MirrorSnapshotID = snap.SnapshotID
	return nil
}

// Stop stops scheduling and waits for an in-flight background cycle to
// finish. If ctx expires first the cycle is cancelled and ctx.Err() returned.
func (m *Maintainer) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	c, w := m.cron, m.watcher
	m.mu.Unlock()

	if w != nil {
		if err := w.Stop(); err != nil {
			m.logger.Warn().Err(err).Msg("stop mirror watcher")
		}
	}

	done := make(chan struct{})
	go func() {
		if c != nil {
			<-c.Stop().Done()
		}
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		if c != nil {
			m.logger.Info().Msg("maintainer stopped")
		}
		return nil
	case <-ctx.Done():
		m.cancel()
		m.logger.Warn().Msg("maintainer stop timed out, cancelled in-flight cycle")
		return ctx.Err()
	}
}

// Status returns the current maintainer status.
func (m *Maintainer) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Enabled:  m.cfg.Enabled,
		Running:  m.started && !m.stopped,
		State:    m.state,
		Interval: m.cfg.Interval,
		Cycles:   m.cycles,
		Failures: m.failures,
	}
	if m.lastCycle != nil {
		t := *m.lastCycle
		st.LastCycle = &t
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *Maintainer) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
