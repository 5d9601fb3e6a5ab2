// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the agent core's Prometheus instruments.
type Collector struct {
	tasksTotal     *prometheus.CounterVec
	taskDuration   prometheus.Histogram
	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	compactions    prometheus.Counter
	snapshotsTotal *prometheus.CounterVec
	breakerOpens   *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	historySize    prometheus.Gauge
}

// NewCollector creates a collector registered against reg. A nil registerer
// uses the default registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of processed tasks",
			},
			[]string{"kind", "status"},
		),
		taskDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of executed plan steps",
			},
			[]string{"tool", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Plan step duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		compactions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_compactions_total",
				Help:      "Total number of history compactions",
			},
		),
		snapshotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_total",
				Help:      "Total number of snapshot attempts",
			},
			[]string{"status"},
		),
		breakerOpens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_opens_total",
				Help:      "Total number of circuit breaker open transitions",
			},
			[]string{"tool"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "task_queue_depth",
				Help:      "Number of pending tasks",
			},
		),
		historySize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "history_size_chars",
				Help:      "Serialized history size in characters",
			},
		),
	}
}

// RecordTask records a processed task.
func (c *Collector) RecordTask(kind, status string, duration time.Duration) {
	c.tasksTotal.WithLabelValues(kind, status).Inc()
	c.taskDuration.Observe(duration.Seconds())
}

// RecordStep records an executed step.
func (c *Collector) RecordStep(tool, status string, duration time.Duration) {
	c.stepsTotal.WithLabelValues(tool, status).Inc()
	c.stepDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCompaction records a history compaction.
func (c *Collector) RecordCompaction() {
	c.compactions.Inc()
}

// RecordSnapshot records a snapshot attempt.
func (c *Collector) RecordSnapshot(status string) {
	c.snapshotsTotal.WithLabelValues(status).Inc()
}

// RecordBreakerOpen records a circuit breaker opening for a tool.
func (c *Collector) RecordBreakerOpen(tool string) {
	c.breakerOpens.WithLabelValues(tool).Inc()
}

// SetQueueDepth updates the pending task gauge.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// SetHistorySize updates the serialized history size gauge.
func (c *Collector) SetHistorySize(chars int) {
	c.historySize.Set(float64(chars))
}
