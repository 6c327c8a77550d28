package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	assert.NotNil(t, m.Registry())
	assert.NotNil(t, m.IngestDuration)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.EntriesTotal)
	assert.NotNil(t, m.MaintenanceCycles)
	assert.NotNil(t, m.SearchCache)
}

func TestRecorders(t *testing.T) {
	m := New()

	m.SetEntries(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.EntriesTotal))

	m.RecordCycle("success", time.Second)
	m.RecordCycle("failed", time.Second)
	m.RecordCycle("skipped", 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaintenanceCycles.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaintenanceCycles.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaintenanceCycles.WithLabelValues("skipped")))

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchCache.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest(time.Millisecond)
		m.ObserveSearch(time.Millisecond)
		m.SetEntries(1)
		m.RecordCycle("success", time.Second)
		m.RecordCacheLookup(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveIngest(5 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "memory_ingest_duration_seconds"))
}
