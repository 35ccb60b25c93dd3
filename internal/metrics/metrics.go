// Package metrics exposes Prometheus instruments for the registration engine
// and its HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "event_registration"

// Metrics groups every instrument the service records.
type Metrics struct {
	registry prometheus.Gatherer

	Signups        *prometheus.CounterVec
	SignupRejected *prometheus.CounterVec
	RosterChanges  *prometheus.CounterVec
	CascadeDeletes *prometheus.CounterVec
	StoreCalls     *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer registers all instruments on r and serves them from g.
func NewWithRegisterer(r prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		registry: g,
		Signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Registrations created, by resulting status.",
		}, []string{"status"}),
		SignupRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signup_rejections_total",
			Help:      "Signups refused, by reason.",
		}, []string{"reason"}),
		RosterChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_changes_total",
			Help:      "Administrative and self-service roster mutations.",
		}, []string{"action"}),
		CascadeDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_deletes_total",
			Help:      "Event cascade deletes, by outcome.",
		}, []string{"outcome"}),
		StoreCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Latency of event store calls.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	r.MustRegister(
		m.Signups, m.SignupRejected, m.RosterChanges, m.CascadeDeletes,
		m.StoreCalls, m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Signup(status string) {
	if m == nil {
		return
	}
	m.Signups.WithLabelValues(status).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.SignupRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Roster(action string) {
	if m == nil {
		return
	}
	m.RosterChanges.WithLabelValues(action).Inc()
}

func (m *Metrics) Cascade(outcome string) {
	if m == nil {
		return
	}
	m.CascadeDeletes.WithLabelValues(outcome).Inc()
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreCalls.WithLabelValues(op, outcome).Observe(took.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
