// Package metrics exposes Prometheus collectors for the dashboard core and its
// renderer-facing HTTP API.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for backend requests.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Poll tick outcomes.
const (
	PollRun     = "run"
	PollSkipped = "skipped"
)

// Metrics owns every collector. A nil *Metrics is valid and records nothing,
// which keeps tests and one-shot CLI commands free of registry plumbing.
type Metrics struct {
	gatherer prometheus.Gatherer

	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	rateLimitWait   *prometheus.HistogramVec
	staleResponses  *prometheus.CounterVec
	pollTicks       *prometheus.CounterVec
	records         prometheus.Gauge
	selected        prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors against reg. When reg is nil a private
// registry is created.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotdash_backend_requests_total",
			Help: "Backend calls issued by the dashboard, labeled by operation and result.",
		}, []string{"operation", "result"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotdash_backend_request_duration_seconds",
			Help:    "Backend call latency, labeled by operation.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		}, []string{"operation"}),
		rateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotdash_backend_rate_limit_wait_seconds",
			Help:    "Time backend calls were held back by the client-side rate limiter, labeled by operation.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotdash_stale_responses_total",
			Help: "Responses discarded because a newer response for the same operation was already applied.",
		}, []string{"operation"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotdash_poll_ticks_total",
			Help: "Auto-refresh ticks per operation, labeled by whether the fetch ran or was skipped.",
		}, []string{"operation", "outcome"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hotdash_records",
			Help: "Hotspot records currently held in the list view.",
		}),
		selected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hotdash_selected_records",
			Help: "Records currently selected for batch actions.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
	for _, c := range []prometheus.Collector{
		m.backendRequests,
		m.backendDuration,
		m.rateLimitWait,
		m.staleResponses,
		m.pollTicks,
		m.records,
		m.selected,
		m.httpRequests,
		m.httpDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register dashboard collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveBackend records one backend call.
func (m *Metrics) ObserveBackend(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.backendRequests.WithLabelValues(operation, result).Inc()
	m.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRateLimitWait records how long a call waited for a token.
func (m *Metrics) ObserveRateLimitWait(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveStale counts a discarded out-of-order response.
func (m *Metrics) ObserveStale(operation string) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(operation).Inc()
}

// ObservePollTick counts one auto-refresh tick for an operation.
func (m *Metrics) ObservePollTick(operation, outcome string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(operation, outcome).Inc()
}

// SetListSizes publishes the current list and selection sizes.
func (m *Metrics) SetListSizes(records, selected int) {
	if m == nil {
		return
	}
	m.records.Set(float64(records))
	m.selected.Set(float64(selected))
}

// ObserveHTTPRequest records one renderer API request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
