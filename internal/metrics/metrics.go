// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency. The upstream is bounded at 30s.
var defaultBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	ProxyResponses    *prometheus.CounterVec

	pathPrefixes []string
}

// New creates a Metrics instance with a custom registry and all collectors registered.
// scrapePath is the configured exposition route; it gets its own path label.
// Pass "" when the endpoint is not served.
func New(scrapePath string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry:     reg,
		pathPrefixes: routePrefixes(scrapePath),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wfs_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wfs_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wfs_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wfs_proxy_upstream_request_duration_seconds",
			Help:    "Upstream WFS call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"outcome"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wfs_proxy_upstream_responses_total",
			Help: "Total upstream WFS responses by status code.",
		}, []string{"status_code"}),

		ProxyResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wfs_proxy_responses_total",
			Help: "Proxy responses by normalization kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.ProxyResponses,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// apiPrefixes are the fixed routes that get their own path label.
// Everything else is the static front-end.
var apiPrefixes = []string{"/proxy/wfs", "/proxy/status", "/api/config", "/healthz"}

func routePrefixes(scrapePath string) []string {
	prefixes := append([]string(nil), apiPrefixes...)
	if scrapePath != "" && scrapePath != "/" {
		prefixes = append(prefixes, strings.TrimSuffix(scrapePath, "/"))
	}
	return prefixes
}

// NormalizePath returns a bounded path label for Prometheus metrics.
func (m *Metrics) NormalizePath(path string) string {
	for _, prefix := range m.pathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "static"
}
