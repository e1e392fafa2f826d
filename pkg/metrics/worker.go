package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics records outcomes of background loops such as outbox
// publishing batches and follow-up consumption.
type WorkerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewWorkerMetrics registers the worker metrics on the provided registerer.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "branchledger_worker_duration_seconds",
		Help:    "Duration of background work units in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "branchledger_worker_success_total",
		Help: "Background work units that completed.",
	}, []string{"worker"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "branchledger_worker_failure_total",
		Help: "Background work units that failed.",
	}, []string{"worker"})
	reg.MustRegister(duration, success, failure)
	return &WorkerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

func (c *WorkerMetrics) ObserveDuration(worker string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(worker)).Observe(duration.Seconds())
}

func (c *WorkerMetrics) IncSuccess(worker string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(worker)).Inc()
}

func (c *WorkerMetrics) IncFailure(worker string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(worker)).Inc()
}

// Track observes the duration since start and counts the outcome.
func (c *WorkerMetrics) Track(worker string, start time.Time, err error) {
	c.ObserveDuration(worker, time.Since(start))
	if err != nil {
		c.IncFailure(worker)
		return
	}
	c.IncSuccess(worker)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
