// Package metrics provides Prometheus collectors for sync passes.
//
// Usage:
//
//	metrics.RecordPass("delta", "SILENT_SUCCESS", time.Since(start))
//	metrics.RecordShowRefresh(true)
//	metrics.RecordFault("activity", "transport")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassesTotal counts sync passes by mode and result code.
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesync_passes_total",
			Help: "Total number of sync passes",
		},
		[]string{"mode", "result"},
	)

	// PassDuration tracks how long a pass takes.
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seriesync_pass_duration_seconds",
			Help:    "Duration of sync passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
		[]string{"mode"},
	)

	// ShowRefreshesTotal counts metadata refreshes by outcome.
	ShowRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesync_show_refreshes_total",
			Help: "Total number of show metadata refreshes",
		},
		[]string{"outcome"},
	)

	// ActivityOperationsTotal counts batch operations built from activity.
	ActivityOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesync_activity_operations_total",
			Help: "Total number of write operations derived from the activity feed",
		},
		[]string{"kind"},
	)

	// NewShowsTotal counts shows discovered through activity.
	NewShowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seriesync_new_shows_total",
			Help: "Total number of unknown shows queued for adding",
		},
	)

	// FaultsTotal is the diagnostics sink for non-fatal faults.
	FaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesync_faults_total",
			Help: "Total number of faults by component and kind",
		},
		[]string{"component", "kind"},
	)

	// ConsecutiveFailures mirrors the persisted failure counter.
	ConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seriesync_consecutive_failures",
			Help: "Number of consecutive failed sync passes",
		},
	)
)

// RecordPass records a finished pass
func RecordPass(mode, result string, duration time.Duration) {
	PassesTotal.WithLabelValues(mode, result).Inc()
	PassDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordShowRefresh records one metadata refresh outcome
func RecordShowRefresh(success bool) {
	outcome := "failed"
	if success {
		outcome = "updated"
	}
	ShowRefreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordOperation records one batch operation of the given kind
func RecordOperation(kind string) {
	ActivityOperationsTotal.WithLabelValues(kind).Inc()
}

// RecordFault records a non-fatal fault
func RecordFault(component, kind string) {
	FaultsTotal.WithLabelValues(component, kind).Inc()
}
