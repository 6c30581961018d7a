package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"wfs-proxy/internal/config"
)

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(&config.Config{}, "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: config.DefaultUpstreamURL},
	}
	h := NewHealthHandler(cfg, "1.2.3")
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["version"] != "1.2.3" {
		t.Errorf("body.version = %q, want %q", body["version"], "1.2.3")
	}
	if body["upstream_url"] != config.DefaultUpstreamURL {
		t.Errorf("body.upstream_url = %q, want %q", body["upstream_url"], config.DefaultUpstreamURL)
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name           string
		vworld         config.VWorldConfig
		wantConfigured bool
	}{
		{"key set", config.VWorldConfig{APIKey: "super-secret", Domain: "maps.example.com"}, true},
		{"key missing", config.VWorldConfig{Domain: "maps.example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/config", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := NewHealthHandler(&config.Config{VWorld: tt.vworld}, "test")
			if err := h.Config(c); err != nil {
				t.Fatalf("Config() error = %v", err)
			}

			if strings.Contains(rec.Body.String(), "super-secret") {
				t.Fatalf("body leaks the API key: %s", rec.Body.String())
			}

			var body struct {
				Configured bool   `json:"configured"`
				Domain     string `json:"domain"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Configured != tt.wantConfigured {
				t.Errorf("configured = %v, want %v", body.Configured, tt.wantConfigured)
			}
			if body.Domain != "maps.example.com" {
				t.Errorf("domain = %q, want %q", body.Domain, "maps.example.com")
			}
		})
	}
}
