// Package metrics exposes per-task outcome counters for observability tooling.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcome labels
const (
	OutcomeDone    = "done"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder receives one call per executed task.
type Recorder interface {
	RecordTask(taskType, outcome string, newBusinesses, newSources, providerRequests int, duration time.Duration)
}

// NopRecorder discards everything.
type NopRecorder struct{}

// RecordTask implements Recorder.
func (NopRecorder) RecordTask(string, string, int, int, int, time.Duration) {}

// PrometheusRecorder is a Prometheus implementation of Recorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	tasksRun         *prometheus.CounterVec
	tasksFailed      *prometheus.CounterVec
	tasksSkipped     *prometheus.CounterVec
	newBusinesses    *prometheus.CounterVec
	newSources       *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with its own registry, including Go and
// process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	labels := []string{"task_type"}
	r := &PrometheusRecorder{
		registry: registry,
		tasksRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizscout_tasks_run_total",
			Help: "Total search tasks executed.",
		}, labels),
		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizscout_tasks_failed_total",
			Help: "Total search tasks that ended FAILED.",
		}, labels),
		tasksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizscout_tasks_skipped_total",
			Help: "Total search tasks that returned no results.",
		}, labels),
		newBusinesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizscout_new_businesses_total",
			Help: "Total businesses created.",
		}, labels),
		newSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizscout_new_sources_total",
			Help: "Total sources created.",
		}, labels),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizscout_provider_requests_total",
			Help: "Total provider HTTP requests, including retries.",
		}, labels),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizscout_task_duration_seconds",
			Help:    "Duration of search task executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task_type", "outcome"}),
	}

	registry.MustRegister(r.tasksRun)
	registry.MustRegister(r.tasksFailed)
	registry.MustRegister(r.tasksSkipped)
	registry.MustRegister(r.newBusinesses)
	registry.MustRegister(r.newSources)
	registry.MustRegister(r.providerRequests)
	registry.MustRegister(r.taskDuration)

	return r
}

// Registry returns the Prometheus registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordTask implements Recorder.
func (r *PrometheusRecorder) RecordTask(taskType, outcome string, newBusinesses, newSources, providerRequests int, duration time.Duration) {
	r.tasksRun.WithLabelValues(taskType).Inc()
	switch outcome {
	case OutcomeFailed:
		r.tasksFailed.WithLabelValues(taskType).Inc()
	case OutcomeSkipped:
		r.tasksSkipped.WithLabelValues(taskType).Inc()
	}
	if newBusinesses > 0 {
		r.newBusinesses.WithLabelValues(taskType).Add(float64(newBusinesses))
	}
	if newSources > 0 {
		r.newSources.WithLabelValues(taskType).Add(float64(newSources))
	}
	if providerRequests > 0 {
		r.providerRequests.WithLabelValues(taskType).Add(float64(providerRequests))
	}
	r.taskDuration.WithLabelValues(taskType, outcome).Observe(duration.Seconds())
}
