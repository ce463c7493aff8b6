package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdminTier returns middleware that rejects clinician-role callers.
func RequireAdminTier() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no principal")
			}
			if !p.Role.AdminTier() {
				return echo.NewHTTPError(http.StatusForbidden, "admin role required")
			}
			return next(c)
		}
	}
}
