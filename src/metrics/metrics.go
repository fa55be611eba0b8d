// Package metrics provides Prometheus metrics for the commission service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModelCallsTotal tracks chat model calls by pipeline step and outcome
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commission",
			Name:      "model_calls_total",
			Help:      "Total number of chat model calls by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	// RowsTotal tracks processed payment rows
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commission",
			Name:      "rows_total",
			Help:      "Total number of payment rows processed by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// DriftOverridesTotal counts model numbers replaced by the locally computed value
	DriftOverridesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commission",
			Name:      "drift_overrides_total",
			Help:      "Total number of model-reported amounts replaced by the deterministic formula",
		},
		[]string{"step"},
	)

	// BatchDuration tracks how long a batch or flow run takes
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "commission",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch and flow runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)
)

// Step labels.
const (
	StepUser       = "user"
	StepOriginator = "originator"
	StepInsight    = "insight"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func RecordModelCall(step string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	ModelCallsTotal.WithLabelValues(step, outcome).Inc()
}

func RecordRow(mode string, failed bool) {
	outcome := OutcomeOK
	if failed {
		outcome = OutcomeError
	}
	RowsTotal.WithLabelValues(mode, outcome).Inc()
}

func RecordDriftOverride(step string) {
	DriftOverridesTotal.WithLabelValues(step).Inc()
}

func RecordBatch(mode string, durationSeconds float64) {
	BatchDuration.WithLabelValues(mode).Observe(durationSeconds)
}
