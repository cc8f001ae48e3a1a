package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search kinds used as metric label values.
const (
	KindCustomers = "customers"
	KindDatasets  = "datasets"
)

// Metrics holds the Prometheus metrics of the matching service. A nil
// *Metrics is valid and records nothing, so components can be wired without
// metrics in tests.
type Metrics struct {
	// Searches counts address searches by record kind and outcome.
	Searches *prometheus.CounterVec

	// LockChecks counts creation lock decisions by decision and reason.
	LockChecks *prometheus.CounterVec

	// DatasetsCreated counts successfully created datasets.
	DatasetsCreated prometheus.Counter

	// SnapshotRecords tracks how many records the published snapshot holds.
	SnapshotRecords *prometheus.GaugeVec

	// RefreshDuration tracks how long snapshot rebuilds take.
	RefreshDuration prometheus.Histogram

	// Refreshes counts snapshot rebuilds by outcome.
	Refreshes *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with the registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "akquise",
				Subsystem: "matching",
				Name:      "searches_total",
				Help:      "Total number of address searches",
			},
			[]string{"kind", "outcome"}, // outcome: "hit" or "empty"
		),

		LockChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "akquise",
				Subsystem: "matching",
				Name:      "lock_checks_total",
				Help:      "Total number of creation lock decisions",
			},
			[]string{"decision", "reason"},
		),

		DatasetsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "akquise",
				Subsystem: "matching",
				Name:      "datasets_created_total",
				Help:      "Total number of datasets created",
			},
		),

		SnapshotRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "akquise",
				Subsystem: "cache",
				Name:      "snapshot_records",
				Help:      "Number of records in the published snapshot",
			},
			[]string{"kind"},
		),

		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "akquise",
				Subsystem: "cache",
				Name:      "refresh_duration_seconds",
				Help:      "Snapshot rebuild latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
			},
		),

		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "akquise",
				Subsystem: "cache",
				Name:      "refreshes_total",
				Help:      "Total number of snapshot rebuilds",
			},
			[]string{"outcome"}, // "success" or "error"
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.Searches,
			m.LockChecks,
			m.DatasetsCreated,
			m.SnapshotRecords,
			m.RefreshDuration,
			m.Refreshes,
		)
	}

	return m
}

// RecordSearch records one search and its result size.
func (m *Metrics) RecordSearch(kind string, results int) {
	if m == nil {
		return
	}
	outcome := "hit"
	if results == 0 {
		outcome = "empty"
	}
	m.Searches.WithLabelValues(kind, outcome).Inc()
}

// RecordLockDecision records one creation lock decision.
func (m *Metrics) RecordLockDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "blocked"
	}
	m.LockChecks.WithLabelValues(decision, reason).Inc()
}

// RecordDatasetCreated records one successful dataset creation.
func (m *Metrics) RecordDatasetCreated() {
	if m == nil {
		return
	}
	m.DatasetsCreated.Inc()
}

// RecordRefresh records one snapshot rebuild.
func (m *Metrics) RecordRefresh(duration time.Duration, customers, datasets int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Refreshes.WithLabelValues("error").Inc()
		return
	}
	m.Refreshes.WithLabelValues("success").Inc()
	m.RefreshDuration.Observe(duration.Seconds())
	m.SnapshotRecords.WithLabelValues(KindCustomers).Set(float64(customers))
	m.SnapshotRecords.WithLabelValues(KindDatasets).Set(float64(datasets))
}
