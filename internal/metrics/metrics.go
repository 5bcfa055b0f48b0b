// Package metrics registers the Prometheus collectors for analysis runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "profiler"

// Poll attempt outcomes.
const (
	OutcomeReady         = "ready"
	OutcomeNotReady      = "not_ready"
	OutcomeTransportErr  = "transport_error"
	OutcomeHTTPErr       = "http_error"
	OutcomeInvalidBody   = "invalid_body"
	OutcomeUnexpectedErr = "error"
)

var (
	// pollAttempts counts poll attempts.
	// Labels: outcome (ready, not_ready, transport_error, http_error, invalid_body, error)
	pollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "attempts_total",
		Help:      "Total poll attempts by outcome",
	}, []string{"outcome"})

	// initiations counts initiate calls.
	// Labels: kind (ok or the error kind)
	initiations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "initiations_total",
		Help:      "Total analysis initiations by result kind",
	}, []string{"kind"})

	// analyses counts finished analyses.
	// Labels: status (ready, timed_out, failed, cancelled)
	analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "completed_total",
		Help:      "Total finished analyses by terminal status",
	}, []string{"status"})

	// analysisDuration measures the wall clock time of a full run.
	// Labels: status
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Analysis wall clock duration in seconds",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900, 1200},
	}, []string{"status"})

	// activePolls tracks polling loops currently running.
	activePolls = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "active",
		Help:      "Polling loops currently in flight",
	})

	// staleAnalyses tracks in-flight analyses without recent progress, as
	// last seen by the health checker.
	staleAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "stale",
		Help:      "In-flight analyses without recent progress",
	})
)

// RecordPollAttempt counts one poll attempt with the given outcome.
func RecordPollAttempt(outcome string) {
	pollAttempts.WithLabelValues(outcome).Inc()
}

// RecordInitiation counts one initiate call. An empty kind means success.
func RecordInitiation(kind string) {
	if kind == "" {
		kind = "ok"
	}
	initiations.WithLabelValues(kind).Inc()
}

// RecordAnalysis records a finished analysis and its duration.
func RecordAnalysis(status string, d time.Duration) {
	analyses.WithLabelValues(status).Inc()
	analysisDuration.WithLabelValues(status).Observe(d.Seconds())
}

// PollStarted marks a polling loop as running. The returned func marks it done.
func PollStarted() func() {
	activePolls.Inc()
	return activePolls.Dec
}

// SetStaleAnalyses records the stale analysis count of the latest health check.
func SetStaleAnalyses(n int) {
	staleAnalyses.Set(float64(n))
}
