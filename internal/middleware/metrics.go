package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"wfs-proxy/internal/metrics"
)

// Metrics returns an Echo middleware that counts and times inbound requests.
// Preflights are answered in Pre and never reach it.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			labels := prometheus.Labels{
				"method":      metrics.NormalizeMethod(c.Request().Method),
				"status_code": strconv.Itoa(finalStatus(c, err)),
				"path_prefix": m.NormalizePath(c.Request().URL.Path),
			}
			m.RequestsTotal.With(labels).Inc()
			m.RequestDuration.With(labels).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// finalStatus predicts the code the error handler will write for err. An
// *echo.HTTPError keeps its code; any other error becomes a 500.
func finalStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
