package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/addwise/addwise-hub/internal/authz"
)

// RequireRole rejects requests whose principal holds none of roles.  It
// must run after JWTAuth.  Role comparison is case-insensitive.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authz.RequireRole(Principal(c), roles...); err != nil {
				if errors.Is(err, authz.ErrUnauthenticated) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error(), "kind": "Unauthenticated"})
				}
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "kind": "Forbidden"})
			}
			return next(c)
		}
	}
}
