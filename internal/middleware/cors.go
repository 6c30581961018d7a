package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// corsHeaders are attached to every response, success or failure.
var corsHeaders = map[string]string{
	echo.HeaderAccessControlAllowOrigin:  "*",
	echo.HeaderAccessControlAllowMethods: "GET, POST, OPTIONS",
	echo.HeaderAccessControlAllowHeaders: "Content-Type, Authorization",
	echo.HeaderCacheControl:              "no-store",
}

// CORS returns an Echo middleware that makes every response readable from any
// origin and answers preflight OPTIONS requests with 204 and no body.
//
// Register it with e.Pre so preflights are answered before routing and never
// reach the proxy or static handlers. Unlike echo's own CORS middleware it does
// not require an Origin header: any OPTIONS request is a preflight here.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range corsHeaders {
				h.Set(k, v)
			}

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
