package reports

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes report generation collectors. A nil *Metrics is a no-op.
type Metrics struct {
	renders   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	coercions *prometheus.CounterVec
	rows      *prometheus.HistogramVec
}

// NewMetrics registers the report collectors against the registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopreports_renders_total",
		Help: "Report generations partitioned by kind, format and outcome.",
	}, []string{"kind", "format", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopreports_render_duration_seconds",
		Help:    "Duration of report generation including fetch.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "format"})
	coercions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopreports_coercion_fallbacks_total",
		Help: "Malformed numeric fields coerced to zero.",
	}, []string{"kind", "field"})
	rows := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopreports_rows",
		Help:    "Rows rendered per report.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"kind"})
	registerer.MustRegister(renders, duration, coercions, rows)
	return &Metrics{renders: renders, duration: duration, coercions: coercions, rows: rows}
}

func (m *Metrics) observe(kind Kind, format OutputFormat, outcome string, start time.Time) {
	if m == nil {
		return
	}
	f := string(format)
	if f == "" {
		f = "preview"
	}
	m.renders.WithLabelValues(string(kind), f, outcome).Inc()
	m.duration.WithLabelValues(string(kind), f).Observe(time.Since(start).Seconds())
}

func (m *Metrics) coercion(kind Kind, field string) {
	if m == nil {
		return
	}
	m.coercions.WithLabelValues(string(kind), field).Inc()
}

func (m *Metrics) rowCount(kind Kind, n int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(string(kind)).Observe(float64(n))
}
