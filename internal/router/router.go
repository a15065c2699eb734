// Package router registers the HTTP routes and their middleware chains.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/addwise/addwise-hub/internal/handler"
	"github.com/addwise/addwise-hub/internal/middleware"
	"github.com/addwise/addwise-hub/internal/model"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Groups below carry no group-level middleware: echo registers catch-all
// routes for a group with middleware, and several groups share /v1.  The
// chains are attached per route instead.

// RegisterAuth registers account routes.  Register, login and refresh live
// under /v1/auth without a session; /v1/me requires an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	// Logout accepts either a refresh token in the body or a bearer token.
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterUsers registers the user and admin management routes.  Listing
// and plain user management are open to admins; admin management is for
// the superadmin.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string) {
	staff := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
	}
	super := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleSuperAdmin),
	}

	g := e.Group("/v1")
	g.GET("/users", u.ListUsers, staff...)
	g.POST("/users", u.CreateUser, staff...)
	g.PUT("/users/:id", u.UpdateUser, staff...)
	g.DELETE("/users/:id", u.DeleteUser, staff...)
	g.GET("/admins", u.ListAdmins, staff...)
	g.POST("/admins", u.CreateAdmin, super...)
	g.DELETE("/admins/:id", u.DeleteAdmin, super...)
}

// RegisterQRCodes registers the QR lifecycle routes.  Role checks beyond
// authentication happen in the service, which also knows the owner of a
// code.  The public lookup is cached and the device feed is rate limited.
func RegisterQRCodes(e *echo.Echo, q *handler.QRHandler, jwtSecret string, cache *middleware.ResponseCache, limit echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)

	g := e.Group("/v1")
	g.POST("/qrcodes/generate", q.Generate, auth)
	g.GET("/qrcodes", q.ListAll, auth)
	g.DELETE("/qrcodes", q.DeleteAll, auth)
	g.PUT("/qrcodes/:id", q.Update, auth)
	g.DELETE("/qrcodes/:id", q.Delete, auth)
	g.POST("/qrcodes/assign", q.Assign, auth, limit)
	g.GET("/my-qrcodes", q.ListMine, auth)

	g.GET("/qrcode/:id", q.Get, limit, cache.Middleware())
	g.POST("/qr/:ref/location", q.PushLocation, limit)
}
