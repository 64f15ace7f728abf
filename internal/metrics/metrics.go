// Package metrics holds the Prometheus collectors for the engine.
// Collectors register with the default registry and are served by the ops
// server on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cycleRuns counts cycle firings by outcome.
	// Labels: cycle, status (success, error, panic)
	cycleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "standings",
		Subsystem: "scheduler",
		Name:      "cycle_runs_total",
		Help:      "Total cycle firings by outcome",
	}, []string{"cycle", "status"})

	// cycleDuration measures how long a cycle callback ran.
	// Labels: cycle
	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "standings",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Cycle callback duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"cycle"})

	// regenerations counts ranking artifact regenerations.
	// Labels: channel, status (published, skipped, error)
	regenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "standings",
		Subsystem: "display",
		Name:      "regenerations_total",
		Help:      "Ranking artifact regeneration attempts by outcome",
	}, []string{"channel", "status"})

	// directoryLookups counts external directory calls.
	// Labels: result (hit, found, not_found, rate_limited, error, unresolved)
	directoryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "standings",
		Subsystem: "directory",
		Name:      "lookups_total",
		Help:      "Directory lookups by result",
	}, []string{"result"})

	// directoryBackoff measures how long lookups waited before retrying.
	directoryBackoff = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "standings",
		Subsystem: "directory",
		Name:      "backoff_seconds",
		Help:      "Wait applied before a rate-limited lookup is retried",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// eventsScored counts ingested events by gating verdict.
	// Labels: verdict (allowed, burst_limited, cooldown)
	eventsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "standings",
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Ingested events by gating verdict",
	}, []string{"verdict"})

	// resetEntities counts entities handled by reset cycles.
	// Labels: outcome (archived, retired, unresolved, cleared)
	resetEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "standings",
		Subsystem: "reset",
		Name:      "entities_total",
		Help:      "Entities processed by reset cycles by outcome",
	}, []string{"outcome"})
)

// CycleRun records the outcome and duration of one cycle firing.
func CycleRun(cycle, status string, d time.Duration) {
	cycleRuns.WithLabelValues(cycle, status).Inc()
	cycleDuration.WithLabelValues(cycle).Observe(d.Seconds())
}

// Regeneration records a regeneration attempt.
func Regeneration(channel, status string) {
	regenerations.WithLabelValues(channel, status).Inc()
}

// DirectoryLookup records a directory lookup result.
func DirectoryLookup(result string) {
	directoryLookups.WithLabelValues(result).Inc()
}

// DirectoryBackoff records a retry wait.
func DirectoryBackoff(d time.Duration) {
	directoryBackoff.Observe(d.Seconds())
}

// EventScored records an ingestion gating verdict.
func EventScored(verdict string) {
	eventsScored.WithLabelValues(verdict).Inc()
}

// ResetEntities adds n to a reset outcome counter.
func ResetEntities(outcome string, n int) {
	if n > 0 {
		resetEntities.WithLabelValues(outcome).Add(float64(n))
	}
}
