package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// evaluationsTotal tracks evaluation runs by kind and status
	evaluationsTotal *prometheus.CounterVec

	// evaluationDuration tracks latency of analytic and simulated evaluations
	evaluationDuration *prometheus.HistogramVec

	// simulationTrialsTotal counts Monte Carlo trials executed
	simulationTrialsTotal prometheus.Counter

	// rootProbability tracks the distribution of computed root probabilities
	rootProbability prometheus.Histogram

	// catalogFetchErrorsTotal tracks remote catalog fetch errors by type
	catalogFetchErrorsTotal *prometheus.CounterVec
)

// InitMetrics registers all Prometheus metrics for evaluation runs.
// This should be called once at application startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		evaluationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threatlens_evaluations_total",
				Help: "Total number of evaluation runs by kind and status",
			},
			[]string{"kind", "status"},
		)

		evaluationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "threatlens_evaluation_duration_seconds",
				Help:    "Duration of evaluation runs in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"kind"},
		)

		simulationTrialsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "threatlens_simulation_trials_total",
				Help: "Total number of Monte Carlo trials executed",
			},
		)

		rootProbability = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "threatlens_root_probability",
				Help:    "Distribution of computed root compromise probabilities",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.65, 0.8, 0.9, 0.95, 1.0},
			},
		)

		catalogFetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threatlens_catalog_fetch_errors_total",
				Help: "Total number of remote catalog fetch errors by error type",
			},
			[]string{"error_type"},
		)
	})
}

// RecordEvaluation records an evaluation run.
// kind: "analytic", "simulation"
// status: "success", "error"
func RecordEvaluation(kind, status string) {
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(kind, status).Inc()
	}
}

// RecordEvaluationDuration records how long an evaluation run took.
func RecordEvaluationDuration(kind string, duration time.Duration) {
	if evaluationDuration != nil {
		evaluationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// RecordTrials adds executed Monte Carlo trials to the running total.
func RecordTrials(n int) {
	if simulationTrialsTotal != nil {
		simulationTrialsTotal.Add(float64(n))
	}
}

// RecordRootProbability records a computed root compromise probability.
func RecordRootProbability(p float64) {
	if rootProbability != nil {
		rootProbability.Observe(p)
	}
}

// RecordCatalogFetchError records a remote catalog fetch error by type.
// errorType: "connection", "server_error", "http_error", "parse", "circuit_open"
func RecordCatalogFetchError(errorType string) {
	if catalogFetchErrorsTotal != nil {
		catalogFetchErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

// EvalTimer is a helper for timing evaluation runs.
type EvalTimer struct {
	kind  string
	start time.Time
}

// StartTimer creates a new timer for measuring evaluation duration.
func StartTimer(kind string) *EvalTimer {
	return &EvalTimer{kind: kind, start: time.Now()}
}

// ObserveDuration records the elapsed time since the timer started.
func (t *EvalTimer) ObserveDuration() {
	if t != nil {
		RecordEvaluationDuration(t.kind, time.Since(t.start))
	}
}
