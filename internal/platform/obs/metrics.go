package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestDuration   *prometheus.HistogramVec
	ActionsDispatched     *prometheus.CounterVec
	OptimizationsTotal    *prometheus.CounterVec
	OptimizationDuration  *prometheus.HistogramVec
	SavesTotal            *prometheus.CounterVec
	AssignmentsCreated    prometheus.Counter
	LegCacheLookups       *prometheus.CounterVec
	CircuitBreakerChanges *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wizard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)
	m.ActionsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wizard",
			Name:      "actions_dispatched_total",
			Help:      "Wizard actions dispatched, by type and whether they changed the state",
		},
		[]string{"type", "applied"},
	)
	m.OptimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wizard",
			Name:      "optimizations_total",
			Help:      "Optimizer calls by kind (tsp, cvrp) and outcome",
		},
		[]string{"kind", "outcome"},
	)
	m.OptimizationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wizard",
			Name:      "optimization_duration_seconds",
			Help:      "Optimizer call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	m.SavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wizard",
			Name:      "saves_total",
			Help:      "Save attempts by outcome (success, partial, failed, invalid)",
		},
		[]string{"outcome"},
	)
	m.AssignmentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wizard",
			Name:      "assignments_created_total",
			Help:      "Routes persisted through the backend",
		},
	)
	m.LegCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wizard",
			Name:      "leg_cache_lookups_total",
			Help:      "Leg cache fallback lookups after a backend failure, by result (hit, miss)",
		},
		[]string{"result"},
	)
	m.CircuitBreakerChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wizard",
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Backend circuit breaker transitions by target state",
		},
		[]string{"name", "to"},
	)

	registry.MustRegister(
		m.HTTPRequestDuration,
		m.ActionsDispatched,
		m.OptimizationsTotal,
		m.OptimizationDuration,
		m.SavesTotal,
		m.AssignmentsCreated,
		m.LegCacheLookups,
		m.CircuitBreakerChanges,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(dur.Seconds())
}

func (m *Metrics) ObserveAction(actionType string, applied bool) {
	if m == nil {
		return
	}
	m.ActionsDispatched.WithLabelValues(actionType, strconv.FormatBool(applied)).Inc()
}

func (m *Metrics) ObserveOptimization(kind string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.OptimizationsTotal.WithLabelValues(kind, outcome).Inc()
	m.OptimizationDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func (m *Metrics) ObserveSave(outcome string, created int) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(outcome).Inc()
	m.AssignmentsCreated.Add(float64(created))
}

func (m *Metrics) ObserveLegCache(hits, misses int) {
	if m == nil {
		return
	}
	m.LegCacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.LegCacheLookups.WithLabelValues("miss").Add(float64(misses))
}

func (m *Metrics) ObserveBreaker(name, to string) {
	if m == nil {
		return
	}
	m.CircuitBreakerChanges.WithLabelValues(name, to).Inc()
}
