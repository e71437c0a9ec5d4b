// Package metrics exposes Prometheus collectors for the quiz client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups every metric the client records. Each Collector owns its
// registry so several clients (and tests) can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
	answersTotal    *prometheus.CounterVec
	sessionsTotal   *prometheus.CounterVec
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memquiz_requests_total",
				Help: "Backend request attempts by action, endpoint and outcome",
			},
			[]string{"action", "endpoint", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memquiz_request_duration_seconds",
				Help:    "Backend request attempt duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memquiz_endpoint_fallbacks_total",
				Help: "Failed attempts that moved on to the next endpoint",
			},
			[]string{"endpoint", "kind"},
		),
		answersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memquiz_answers_total",
				Help: "Submitted answers by correctness",
			},
			[]string{"correct"},
		),
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memquiz_sessions_finished_total",
				Help: "Finished sessions by how they ended",
			},
			[]string{"auto"},
		),
	}
	c.registry.MustRegister(c.requestsTotal, c.requestDuration, c.fallbacksTotal, c.answersTotal, c.sessionsTotal)
	return c
}

// RecordRequest records one transport attempt. outcome is "ok" or an error kind.
func (c *Collector) RecordRequest(action, endpoint, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(action, endpoint, outcome).Inc()
	c.requestDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordFallback records a failed candidate the orchestrator moved past.
func (c *Collector) RecordFallback(endpoint, kind string) {
	if c == nil {
		return
	}
	c.fallbacksTotal.WithLabelValues(endpoint, kind).Inc()
}

// RecordAnswer records a graded answer.
func (c *Collector) RecordAnswer(correct bool) {
	if c == nil {
		return
	}
	c.answersTotal.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

// RecordSessionFinished records a finished session.
func (c *Collector) RecordSessionFinished(auto bool) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(strconv.FormatBool(auto)).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
