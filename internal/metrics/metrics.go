// Package metrics exposes Prometheus collectors for the plan service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	planTasksTotal             *prometheus.CounterVec
	planStageDurationSeconds   *prometheus.HistogramVec
	rateLimitRejectionsTotal   prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		planTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planform_tasks_total",
				Help: "Plan tasks reaching a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		planStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planform_stage_duration_seconds",
				Help:    "Duration of individual pipeline stages.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		)

		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "planform_rate_limit_rejections_total",
				Help: "Plan submissions rejected by the admission limiter.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveTask records a task reaching a terminal state.
func ObserveTask(status string) {
	if planTasksTotal == nil {
		return
	}
	planTasksTotal.WithLabelValues(status).Inc()
}

// ObserveStage records a pipeline stage duration.
func ObserveStage(stage string, d time.Duration) {
	if planStageDurationSeconds == nil {
		return
	}
	planStageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRateLimitRejection counts a 429 at submission.
func ObserveRateLimitRejection() {
	if rateLimitRejectionsTotal == nil {
		return
	}
	rateLimitRejectionsTotal.Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
