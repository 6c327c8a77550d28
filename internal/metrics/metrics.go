// Package metrics exposes Prometheus instrumentation for the memory engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	registry *prometheus.Registry

	IngestDuration      prometheus.Histogram
	SearchDuration      prometheus.Histogram
	EntriesTotal        prometheus.Gauge
	MaintenanceCycles   *prometheus.CounterVec
	MaintenanceDuration prometheus.Histogram
	SearchCache         *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memory_ingest_duration_seconds",
				Help:    "Duration of ingest calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memory_search_duration_seconds",
				Help:    "Duration of search calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		EntriesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_entries_total",
				Help: "Number of entries in the ledger",
			},
		),
		MaintenanceCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memory_maintenance_cycles_total",
				Help: "Total number of maintenance cycles by outcome",
			},
			[]string{"status"},
		),
		MaintenanceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memory_maintenance_duration_seconds",
				Help:    "Duration of maintenance cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SearchCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memory_search_cache_total",
				Help: "Search cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.IngestDuration,
		m.SearchDuration,
		m.EntriesTotal,
		m.MaintenanceCycles,
		m.MaintenanceDuration,
		m.SearchCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.EntriesTotal.Set(float64(n))
}

// RecordCycle records a finished maintenance cycle. status is "success",
// "failed" or "skipped".
func (m *Metrics) RecordCycle(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.MaintenanceCycles.WithLabelValues(status).Inc()
	if status != "skipped" {
		m.MaintenanceDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SearchCache.WithLabelValues(result).Inc()
}
