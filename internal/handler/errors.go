package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"wfs-proxy/internal/client"
	"wfs-proxy/internal/model"
)

const msgInternal = "Internal server error"

// ErrorHandler renders every handler error as a JSON {"error": ...} body.
// Echo HTTP errors keep their code and message; anything else is an internal
// fault, logged in full and reported to the client only generically.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := msgInternal

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
			if he.Internal != nil {
				err = he.Internal
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("internal error",
				"err", client.RedactKey(err.Error()),
				"path", c.Request().URL.Path,
			)
			msg = msgInternal
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, model.ErrorEnvelope{Error: msg})
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
