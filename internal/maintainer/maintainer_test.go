package maintainer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/geny-memory/internal/metrics"
	"github.com/rcliao/geny-memory/internal/model"
	"github.com/rcliao/geny-memory/internal/store"
)

type fakeSource struct {
	mu       sync.Mutex
	entries  []model.Entry
	getErr   error
	flushErr error
	flushes  int
}

func (f *fakeSource) GetAll(ctx context.Context) ([]model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]model.Entry(nil), f.entries...), nil
}

func (f *fakeSource) FlushMirror(ctx context.Context) (*store.MirrorSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flushErr != nil {
		return nil, f.flushErr
	}
	f.flushes++
	return store.NewSnapshot(f.entries), nil
}

func (f *fakeSource) setGetErr(err error) {
	f.mu.Lock()
	f.getErr = err
	f.mu.Unlock()
}

type fakeIndexer struct {
	calls  atomic.Int32
	during func(ctx context.Context)
}

func (f *fakeIndexer) Reindex(ctx context.Context, entries []model.Entry) error {
	f.calls.Add(1)
	if f.during != nil {
		f.during(ctx)
	}
	return ctx.Err()
}

func newTestMaintainer(t *testing.T, cfg Config) *Maintainer {
	t.Helper()
	if cfg.Source == nil {
		cfg.Source = &fakeSource{entries: []model.Entry{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}}
	}
	if cfg.Indexer == nil {
		cfg.Indexer = &fakeIndexer{}
	}
	cfg.Logger = zerolog.Nop()
	m, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Indexer: &fakeIndexer{}})
	assert.Error(t, err)
	_, err = New(Config{Source: &fakeSource{}})
	assert.Error(t, err)
}

func TestNewDefaultsInterval(t *testing.T) {
	m := newTestMaintainer(t, Config{Enabled: true})
	assert.Equal(t, DefaultInterval, m.Status().Interval)
}

func TestDisabledStartsNothing(t *testing.T) {
	idx := &fakeIndexer{}
	m := newTestMaintainer(t, Config{Enabled: false, Interval: time.Second, Indexer: idx})

	require.NoError(t, m.Start())
	assert.Nil(t, m.cron)
	assert.Nil(t, m.watcher)
	assert.False(t, m.Status().Running)
	assert.False(t, m.Trigger())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, idx.calls.Load())
}

func TestRunOnceSuccess(t *testing.T) {
	src := &fakeSource{entries: []model.Entry{{ID: 1, Text: "a"}}}
	var seen State
	var m *Maintainer
	idx := &fakeIndexer{during: func(context.Context) { seen = m.Status().State }}
	met := metrics.New()
	m = newTestMaintainer(t, Config{Source: src, Indexer: idx, Metrics: met})

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateRebuilding, seen)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 1, report.Entries)
	assert.NotEmpty(t, report.MirrorSnapshotID)
	assert.Equal(t, 1, src.flushes)

	st := m.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.NotNil(t, st.LastCycle)
	assert.Empty(t, st.LastError)
	assert.Equal(t, uint64(1), st.Cycles)
}

func TestRunOnceFailureReturnsToIdle(t *testing.T) {
	src := &fakeSource{}
	src.setGetErr(errors.New("disk on fire"))
	m := newTestMaintainer(t, Config{Source: src})

	_, err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMaintenanceCycleFailed)

	st := m.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.LastCycle)
	assert.Contains(t, st.LastError, "disk on fire")
	assert.Equal(t, uint64(1), st.Failures)

	// next cycle retries from scratch
	src.setGetErr(nil)
	_, err = m.RunOnce(context.Background())
	require.NoError(t, err)
	st = m.Status()
	assert.NotNil(t, st.LastCycle)
	assert.Empty(t, st.LastError)
}

func TestRunOnceFlushFailure(t *testing.T) {
	src := &fakeSource{flushErr: model.ErrStoreUnavailable}
	m := newTestMaintainer(t, Config{Source: src})

	_, err := m.RunOnce(context.Background())
	assert.ErrorIs(t, err, model.ErrMaintenanceCycleFailed)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestNoOverlappingCycles(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	idx := &fakeIndexer{during: func(context.Context) {
		close(entered)
		<-release
	}}
	m := newTestMaintainer(t, Config{Indexer: idx})

	done := make(chan error, 1)
	go func() {
		_, err := m.RunOnce(context.Background())
		done <- err
	}()
	<-entered

	_, err := m.RunOnce(context.Background())
	assert.ErrorIs(t, err, model.ErrCycleInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), idx.calls.Load())
}

func TestScheduledCycles(t *testing.T) {
	idx := &fakeIndexer{}
	m := newTestMaintainer(t, Config{Enabled: true, Interval: time.Second, Indexer: idx})

	require.NoError(t, m.Start())
	assert.True(t, m.Status().Running)

	assert.Eventually(t, func() bool { return idx.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.Status().Running)

	after := idx.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, idx.calls.Load())
}

func TestTrigger(t *testing.T) {
	idx := &fakeIndexer{}
	m := newTestMaintainer(t, Config{Enabled: true, Interval: time.Hour, Indexer: idx})
	require.NoError(t, m.Start())

	assert.True(t, m.Trigger())
	assert.Eventually(t, func() bool { return idx.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.Trigger())
}

func TestStopCancelsOnTimeout(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once
	idx := &fakeIndexer{during: func(ctx context.Context) {
		once.Do(func() { close(entered) })
		<-ctx.Done()
	}}
	m := newTestMaintainer(t, Config{Enabled: true, Interval: time.Hour, Indexer: idx})
	require.NoError(t, m.Start())

	require.True(t, m.Trigger())
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := m.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool {
		st := m.Status()
		return st.State == StateIdle && st.Failures == 1
	}, time.Second, 10*time.Millisecond)
}
