// Package metrics exposes Prometheus counters for sync submissions,
// attempts and stage outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"syncworker/internal/job"
	"syncworker/internal/models"
)

const namespace = "syncworker"

type Metrics struct {
	registry    *prometheus.Registry
	attempts    *prometheus.CounterVec
	stages      *prometheus.CounterVec
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Sync attempts by job type and outcome.",
		}, []string{"type", "outcome"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Download stage results by stage and success.",
		}, []string{"stage", "succeeded"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submitted sync jobs by queue.",
		}, []string{"queue", "expedited"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of sync attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"type"}),
	}
	m.registry.MustRegister(m.attempts, m.stages, m.submissions, m.duration)
	return m
}

func (m *Metrics) ObserveAttempt(t job.Type, res models.JobResult, elapsed time.Duration) {
	m.attempts.WithLabelValues(string(t), string(res.Outcome)).Inc()
	m.duration.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStage(r models.StageResult) {
	m.stages.WithLabelValues(r.Stage, strconv.FormatBool(r.Succeeded)).Inc()
}

func (m *Metrics) ObserveSubmission(queue string, expedited bool) {
	m.submissions.WithLabelValues(queue, strconv.FormatBool(expedited)).Inc()
}

// Registry gives tests and embedders access to the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
