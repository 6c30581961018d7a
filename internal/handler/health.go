package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"wfs-proxy/internal/config"
	"wfs-proxy/internal/model"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health, status and capability endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": h.cfg.Upstream.BaseURL,
	})
}

// Config tells the front-end whether a key is configured and which domain it
// is bound to. The key itself is never returned.
func (h *HealthHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, model.ConfigStatus{
		Configured: h.cfg.VWorld.Configured(),
		Domain:     h.cfg.VWorld.Domain,
	})
}
