// Package metrics holds the Prometheus collectors of the pathway service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pathways"

// Run results.
const (
	ResultSucceeded  = "succeeded"
	ResultFailed     = "failed"
	ResultSuperseded = "superseded"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	predictRequests  *prometheus.CounterVec
	runsStarted      prometheus.Counter
	runsFinished     *prometheus.CounterVec
	pathwaysAppended prometheus.Counter
	runDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predict_requests_total",
				Help:      "Count of predict requests by outcome.",
			},
			[]string{"outcome"},
		),
		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Count of background prediction runs started.",
			},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_finished_total",
				Help:      "Count of background prediction runs by result.",
			},
			[]string{"result"},
		),
		pathwaysAppended: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pathways_appended_total",
				Help:      "Count of reduced pathways stored on job records.",
			},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of background prediction runs.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.predictRequests, m.runsStarted, m.runsFinished, m.pathwaysAppended, m.runDuration)
	return m
}

func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.predictRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

func (m *Metrics) RunFinished(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsFinished.WithLabelValues(result).Inc()
	m.runDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) PathwayAppended() {
	if m == nil {
		return
	}
	m.pathwaysAppended.Inc()
}
