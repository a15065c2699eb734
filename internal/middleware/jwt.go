package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the resulting
// principal in the echo context and the request context.  Requests without
// a valid token are rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "kind": "Unauthenticated"})
			}
			p, err := parsePrincipal(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "kind": "Unauthenticated"})
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

// OptionalJWT resolves the principal when a valid Bearer token is present
// and otherwise lets the request through as anonymous.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if p, err := parsePrincipal(secret, raw); err == nil {
					setPrincipal(c, p)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func parsePrincipal(secret, raw string) (authz.Principal, error) {
	uid, role, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return authz.Anonymous, err
	}
	return authz.Principal{UserID: uid, Role: model.NormalizeRole(role)}, nil
}
