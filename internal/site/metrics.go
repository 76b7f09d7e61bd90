package site

import (
	"time"

	"github.com/letmevibethatforyou/contentx"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the site's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PageRenders      *prometheus.CounterVec
	PageDuration     *prometheus.HistogramVec
	FetchDuration    *prometheus.HistogramVec
	PreviewRefetches *prometheus.CounterVec
	PreviewSessions  prometheus.Gauge
}

// NewMetrics creates the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	pageRenders := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_renders_total",
			Help:      "Total number of rendered pages",
		},
		[]string{"mode", "status"},
	)

	pageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_render_duration_seconds",
			Help:      "Time to resolve and render a page",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	fetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "content_fetch_duration_seconds",
			Help:      "Content API round trip time",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"query", "outcome"},
	)

	previewRefetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_refetches_total",
			Help:      "Total number of refetches triggered by content saves",
		},
		[]string{"mode"},
	)

	previewSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_sessions",
			Help:      "Number of open live preview sessions",
		},
	)

	registry.MustRegister(
		pageRenders,
		pageDuration,
		fetchDuration,
		previewRefetches,
		previewSessions,
	)

	return &Metrics{
		registry:         registry,
		PageRenders:      pageRenders,
		PageDuration:     pageDuration,
		FetchDuration:    fetchDuration,
		PreviewRefetches: previewRefetches,
		PreviewSessions:  previewSessions,
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one content API round trip. It matches
// fetch.ObserveFunc.
func (m *Metrics) ObserveFetch(query string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.FetchDuration.WithLabelValues(query, outcome).Observe(took.Seconds())
}

// ObserveRefetch counts one refetch in mode.
func (m *Metrics) ObserveRefetch(mode contentx.QueryMode) {
	m.PreviewRefetches.WithLabelValues(mode.String()).Inc()
}
