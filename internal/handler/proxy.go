package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"wfs-proxy/internal/service"
)

// ProxyHandler forwards WFS queries to the upstream VWorld service.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the query string to the upstream and writes the normalized
// response. Upstream failures are reported as JSON envelopes, never as handler
// errors, so only genuine internal faults reach the error handler.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	resp := h.service.Forward(req.Context(), req.URL.Query())

	if resp.Envelope != nil {
		return c.JSON(resp.StatusCode, resp.Envelope)
	}
	return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
}
