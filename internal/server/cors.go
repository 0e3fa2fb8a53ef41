package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// originMiddleware reflects the caller's origin when it is on the allow-list
// and rejects everything else with 403. With no allow-list (or a single "*")
// any origin is accepted. Requests without an Origin header, such as health
// checks and server-to-server calls, always pass.
func originMiddleware(allowed []string) echo.MiddlewareFunc {
	open := len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*")
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	defaultOrigin := "*"
	if !open && len(allowed) > 0 {
		defaultOrigin = allowed[0]
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			h := c.Response().Header()

			allowOrigin := defaultOrigin
			switch {
			case origin == "":
			case open:
				allowOrigin = origin
			case set[origin]:
				allowOrigin = origin
			default:
				return echo.NewHTTPError(http.StatusForbidden, "origin not allowed")
			}

			h.Set(echo.HeaderAccessControlAllowOrigin, allowOrigin)
			h.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
			h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
			h.Add(echo.HeaderVary, echo.HeaderOrigin)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
