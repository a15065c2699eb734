package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/addwise/addwise-hub/internal/authz"
)

// principalKey is the echo context key JWTAuth stores the principal under.
const principalKey = "principal"

// Principal returns the principal resolved by JWTAuth or OptionalJWT, or
// authz.Anonymous when the request carried no valid token.
func Principal(c echo.Context) authz.Principal {
	if p, ok := c.Get(principalKey).(authz.Principal); ok {
		return p
	}
	return authz.Anonymous
}

func setPrincipal(c echo.Context, p authz.Principal) {
	c.Set(principalKey, p)
	req := c.Request()
	c.SetRequest(req.WithContext(authz.WithPrincipal(req.Context(), p)))
}

// userID returns the caller's id for rate limit keys, "anon" for
// anonymous requests.
func userID(c echo.Context) string {
	if p := Principal(c); p.Authenticated() {
		return p.UserID
	}
	return "anon"
}
