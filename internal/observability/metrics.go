package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/shopreports/internal/reports"
)

// Values of the kind label outside report routes and for unknown slugs.
const (
	kindNone    = "none"
	kindUnknown = "unknown"
)

// Metrics collects the Prometheus metrics of the HTTP service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics builds a private registry with the request metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopreports_http_requests_total",
		Help: "HTTP requests partitioned by route, report kind and status code.",
	}, []string{"route", "kind", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopreports_http_request_duration_seconds",
		Help:    "HTTP request latency per route and report kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "kind"})
	registry.MustRegister(requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency for every request. Report routes are
// split by kind so a slow stock-track export does not hide behind previews.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		kind := reportKind(r)
		m.requestsTotal.WithLabelValues(route, kind, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route, kind).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry so report and job metrics share one scrape.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// reportKind keeps the label set bounded: only known kinds pass through.
func reportKind(r *http.Request) string {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		return kindNone
	}
	slug := routeCtx.URLParam("kind")
	if slug == "" {
		return kindNone
	}
	kind, err := reports.ParseKind(slug)
	if err != nil {
		return kindUnknown
	}
	return string(kind)
}
