package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "menuscan"

// Latency buckets in seconds; AI calls dominate the upper end.
var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Registry owns a private prometheus registry and the series the service records.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec   // method, route, status
	HTTPDuration     *prometheus.HistogramVec // method, route
	ExternalCalls    *prometheus.CounterVec   // system, outcome
	ExternalDuration *prometheus.HistogramVec // system
	BreakerState     *prometheus.GaugeVec     // name; 0 closed, 1 half-open, 2 open
	AITokens         *prometheus.CounterVec   // provider, kind
	CacheLookups     *prometheus.CounterVec   // backend, result
	MatchDecisions   *prometheus.CounterVec   // kind, outcome
	ConfigReloads    *prometheus.CounterVec   // result
}

// NewRegistry builds a registry with process and Go runtime collectors attached.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   latencyBuckets,
		}, []string{"method", "route"}),
		ExternalCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to third-party services by outcome",
		}, []string{"system", "outcome"}),
		ExternalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of third-party calls",
			Buckets:   latencyBuckets,
		}, []string{"system"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		AITokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Tokens consumed by menu image analysis",
		}, []string{"provider", "kind"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Scan cache lookups by result",
		}, []string{"backend", "result"}),
		MatchDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_decisions_total",
			Help:      "Matching outcomes by kind",
		}, []string{"kind", "outcome"}),
		ConfigReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reload attempts by result",
		}, []string{"result"}),
	}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler returns an http.Handler that exposes metrics in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Handler exposes the Default registry.
func Handler() http.Handler { return Default.Handler() }

// ObserveExternal records one third-party call.
func (r *Registry) ObserveExternal(system string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ExternalCalls.WithLabelValues(system, outcome).Inc()
	r.ExternalDuration.WithLabelValues(system).Observe(time.Since(start).Seconds())
}

// ObserveMatch records a match decision of the given kind (restaurant, menu, logo).
func (r *Registry) ObserveMatch(kind string, found bool) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	r.MatchDecisions.WithLabelValues(kind, outcome).Inc()
}

// ObserveCache records a cache lookup.
func (r *Registry) ObserveCache(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(backend, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency, labelled by the mux route
// template so path parameters do not explode cardinality.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := "unmatched"
		if cur := mux.CurrentRoute(req); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		r.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).Inc()
		r.HTTPDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
