package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New("/metrics")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Should include at least Go runtime and process collectors.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	// Vec collectors only show up once a label set has been observed.
	m.RequestsTotal.WithLabelValues("GET", "200", "/proxy/wfs").Inc()
	m.UpstreamResponses.WithLabelValues("200").Inc()
	m.ProxyResponses.WithLabelValues("passthrough").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"wfs_proxy_http_requests_total":      false,
		"wfs_proxy_upstream_responses_total": false,
		"wfs_proxy_responses_total":          false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"OPTIONS", "OPTIONS"},
		{"HEAD", "HEAD"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name       string
		scrapePath string
		path       string
		want       string
	}{
		{"wfs", "/metrics", "/proxy/wfs", "/proxy/wfs"},
		{"wfs with query", "/metrics", "/proxy/wfs?REQUEST=GetFeature", "/proxy/wfs"},
		{"status", "/metrics", "/proxy/status", "/proxy/status"},
		{"wfs lookalike", "/metrics", "/proxy/wfsx", "static"},
		{"config", "/metrics", "/api/config", "/api/config"},
		{"healthz", "/metrics", "/healthz", "/healthz"},
		{"default scrape path", "/metrics", "/metrics", "/metrics"},
		{"custom scrape path", "/prom", "/prom", "/prom"},
		{"default path not special when moved", "/prom", "/metrics", "static"},
		{"nested custom scrape path", "/internal/prom", "/internal/prom", "/internal/prom"},
		{"scrape path disabled", "", "/metrics", "static"},
		{"root", "/metrics", "/", "static"},
		{"index", "/metrics", "/index.html", "static"},
		{"asset", "/metrics", "/js/app.js", "static"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.scrapePath)
			if got := m.NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) with scrape path %q = %q, want %q", tt.path, tt.scrapePath, got, tt.want)
			}
		})
	}
}
