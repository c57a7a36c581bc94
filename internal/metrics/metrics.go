// Package metrics exposes Prometheus metrics for the ingestion pipeline,
// the store, and the optimizer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for the daemon.
type Metrics struct {
	// Ingestion pipeline
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Store
	ContextsStoredTotal  *prometheus.CounterVec
	ContextsDeletedTotal prometheus.Counter
	VacuumRunsTotal      prometheus.Counter

	// Learner
	FeedbackTotal         *prometheus.CounterVec
	ParameterUpdatesTotal *prometheus.CounterVec

	// Optimizer
	OptimizerRunsTotal *prometheus.CounterVec
	OptimizerDuration  *prometheus.HistogramVec
}

// New creates and registers the daemon's Prometheus metrics.
//
// sync.Once guards registration so repeated construction never panics
// with a duplicate-collector error. All metrics are prefixed "engram_".
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			EvaluationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engram_evaluations_total",
					Help: "Total content evaluations by decision",
				},
				[]string{"decision"}, // "auto_remember", "ask_confirmation", "ignore"
			),

			EvaluationDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "engram_evaluation_duration_seconds",
					Help:    "Duration of one classify-score-decide pass",
					Buckets: prometheus.DefBuckets,
				},
			),

			ContextsStoredTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engram_contexts_stored_total",
					Help: "Total contexts stored by type",
				},
				[]string{"type"},
			),

			ContextsDeletedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "engram_contexts_deleted_total",
					Help: "Total contexts deleted",
				},
			),

			VacuumRunsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "engram_vacuum_runs_total",
					Help: "Total background vacuum runs",
				},
			),

			FeedbackTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engram_feedback_total",
					Help: "Total user feedback events by action",
				},
				[]string{"action"}, // "accept", "reject", "modify"
			),

			ParameterUpdatesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engram_parameter_updates_total",
					Help: "Total learning parameter updates by kind",
				},
				[]string{"kind"}, // "weight", "threshold"
			),

			OptimizerRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engram_optimizer_runs_total",
					Help: "Total optimizer strategy runs",
				},
				[]string{"strategy"},
			),

			OptimizerDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "engram_optimizer_duration_seconds",
					Help:    "Duration of one optimizer strategy pass",
					Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
				},
				[]string{"strategy"},
			),
		}
	})
	return globalMetrics
}
