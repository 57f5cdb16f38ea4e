package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the counters one pipeline invocation produces. A run is a
// short-lived batch job, so the values are pushed to a Pushgateway at the end
// instead of being scraped.
type Metrics struct {
	registry *prometheus.Registry

	StageItems     *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	EngineAttempts *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.StageItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurefactory_stage_items_total",
			Help: "Items handled by a pipeline stage, by outcome",
		},
		[]string{"stage", "outcome"},
	)

	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "featurefactory_stage_duration_seconds",
			Help:    "Duration of a pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	m.EngineAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurefactory_engine_attempts_total",
			Help: "Candidate generation attempts, by engine and result",
		},
		[]string{"engine", "result"},
	)

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featurefactory_runs_total",
			Help: "Pipeline invocations, by mode and result",
		},
		[]string{"mode", "result"},
	)

	m.registry.MustRegister(m.StageItems, m.StageDuration, m.EngineAttempts, m.RunsTotal)
	return m
}

// Count adds n to the stage/outcome counter. Safe on a nil receiver.
func (m *Metrics) Count(stage, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StageItems.WithLabelValues(stage, outcome).Add(float64(n))
}

// ObserveStage records how long a stage took. Safe on a nil receiver.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// EngineAttempt records one candidate engine call. Safe on a nil receiver.
func (m *Metrics) EngineAttempt(engine string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.EngineAttempts.WithLabelValues(engine, result).Inc()
}

// RunFinished records the outcome of a whole invocation. Safe on a nil receiver.
func (m *Metrics) RunFinished(mode string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RunsTotal.WithLabelValues(mode, result).Inc()
}

// Gatherer exposes the private registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Push sends every collected metric to the Pushgateway at url under job.
// An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
