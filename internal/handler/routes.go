package handler

import (
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wfs-proxy/internal/config"
	"wfs-proxy/internal/metrics"
)

// hiddenStaticDirs are top-level directories never served from the static root.
var hiddenStaticDirs = map[string]bool{
	"configs": true,
}

// RegisterRoutes wires all route handlers onto the Echo instance. Explicit
// routes win over the static catch-all, which serves the front-end.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)
	e.GET("/api/config", health.Config)

	e.GET("/proxy/wfs", proxy.Handle)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	// Skipped paths fall through to NotFoundHandler.
	e.GET("/*", echo.NotFoundHandler, echomw.StaticWithConfig(echomw.StaticConfig{
		Skipper: func(c echo.Context) bool { return hiddenStaticPath(c.Request().URL.Path) },
		Root:    cfg.Static.Root,
		Index:   cfg.Static.Index,
	}))
}

// hiddenStaticPath reports whether p names a dotfile, anything under a dot
// directory, or anything under a hidden top-level directory.
func hiddenStaticPath(p string) bool {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return false
	}
	segments := strings.Split(p, "/")
	if hiddenStaticDirs[segments[0]] {
		return true
	}
	for _, s := range segments {
		if strings.HasPrefix(s, ".") {
			return true
		}
	}
	return false
}
