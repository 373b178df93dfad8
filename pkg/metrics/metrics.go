// Package metrics exposes the pipeline's Prometheus instrumentation:
// package-level collectors plus a small set of Record* free functions
// called from each stage.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_runs_total",
		Help: "Total number of pipeline runs by terminal status.",
	}, []string{"status", "tier"})

	EntriesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_entries_processed_total",
		Help: "Total number of entries that reached a terminal stage.",
	}, []string{"outcome"})

	EntryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_entry_failures_total",
		Help: "Total number of entries that terminated in FAILED, by reason.",
	}, []string{"reason"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geosignal_fetch_duration_seconds",
		Help:    "Fetcher request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	ExtractionMethodTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_extraction_method_total",
		Help: "Extraction cascade wins by method.",
	}, []string{"method"})

	CircuitBreakerOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_circuit_breaker_open_total",
		Help: "Total number of times a per-host circuit breaker opened.",
	}, []string{"host"})

	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geosignal_duplicates_total",
		Help: "Total number of entries classified as duplicates (exact or near).",
	})

	ClustersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_clusters_total",
		Help: "Total number of clusters produced, by flashpoint.",
	}, []string{"flashpoint_id"})

	OracleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geosignal_oracle_calls_total",
		Help: "Total number of summarizer oracle calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	OracleCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geosignal_oracle_call_duration_seconds",
		Help:    "Summarizer oracle call duration.",
		Buckets: prometheus.DefBuckets,
	})

	AlertsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geosignal_alerts_dispatched_total",
		Help: "Total number of flagged-cluster alerts dispatched.",
	})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geosignal_run_duration_seconds",
		Help:    "Total wall-clock duration of a pipeline run.",
		Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
	}, []string{"tier"})
)

// RecordRunComplete records a run's terminal status and duration.
func RecordRunComplete(status, tier string, duration time.Duration) {
	RunsTotal.WithLabelValues(status, tier).Inc()
	RunDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordEntryProcessed records one entry reaching a terminal non-failure
// outcome (processed or skipped_duplicate).
func RecordEntryProcessed(outcome string) {
	EntriesProcessedTotal.WithLabelValues(outcome).Inc()
}

// RecordEntryFailure records one entry's terminal failure reason.
func RecordEntryFailure(reason string) {
	EntryFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordFetch records a fetch attempt's outcome and duration.
func RecordFetch(outcome string, duration time.Duration) {
	FetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordExtractionMethod records which cascade method won.
func RecordExtractionMethod(method string) {
	ExtractionMethodTotal.WithLabelValues(method).Inc()
}

// RecordCircuitOpen records a per-host circuit breaker opening.
func RecordCircuitOpen(host string) {
	CircuitBreakerOpenTotal.WithLabelValues(host).Inc()
}

// RecordDuplicate records one entry classified as a duplicate.
func RecordDuplicate() {
	DuplicatesTotal.Inc()
}

// RecordCluster records one cluster produced for a flashpoint.
func RecordCluster(flashpointID string) {
	ClustersTotal.WithLabelValues(flashpointID).Inc()
}

// RecordOracleCall records a summarizer oracle call's provider, outcome,
// and duration.
func RecordOracleCall(provider, outcome string, duration time.Duration) {
	OracleCallsTotal.WithLabelValues(provider, outcome).Inc()
	OracleCallDuration.Observe(duration.Seconds())
}

// RecordAlertDispatched records one flagged-cluster alert dispatch.
func RecordAlertDispatched() {
	AlertsDispatchedTotal.Inc()
}
