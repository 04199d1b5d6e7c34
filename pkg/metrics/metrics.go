// Package metrics holds the Prometheus instruments for the transcription
// service. Everything is registered at init and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RunsTotal counts engine invocations by engine kind and outcome.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "htrweb",
			Name:      "runs_total",
			Help:      "Engine invocations by engine and outcome.",
		},
		[]string{"engine", "outcome"},
	)

	// RunDuration observes wall time of a single engine invocation.
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "htrweb",
			Name:      "run_duration_seconds",
			Help:      "Duration of a single engine invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"engine"},
	)

	// BatchSize observes how many images arrive per batch request.
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "htrweb",
			Name:      "batch_size",
			Help:      "Images per batch request.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// SessionsActive tracks live scratch workspaces.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "htrweb",
			Name:      "sessions_active",
			Help:      "Currently live sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, RunDuration, BatchSize, SessionsActive)
}
