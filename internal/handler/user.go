package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/middleware"
	"github.com/addwise/addwise-hub/internal/service"
)

// UserHandler serves the user and admin management screens.
// Deleting an account unassigns its codes, so deletes purge the cached
// QR lookups.
type UserHandler struct {
	Users   *service.UserService
	Cache   Purger
	Log     *zap.Logger
	Timeout time.Duration
}

func NewUserHandler(u *service.UserService, cache Purger, log *zap.Logger, timeout time.Duration) *UserHandler {
	return &UserHandler{Users: u, Cache: cache, Log: log, Timeout: timeout}
}

type userReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type editUserReq struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (h *UserHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

func (h *UserHandler) purgeCodes(c echo.Context) {
	if h.Cache != nil {
		h.Cache.PurgeAll(c.Request().Context())
	}
}

// ListUsers handles GET /v1/users.
func (h *UserHandler) ListUsers(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	users, err := h.Users.ListUsers(ctx, middleware.Principal(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, users)
}

// ListAdmins handles GET /v1/admins.
func (h *UserHandler) ListAdmins(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	admins, err := h.Users.ListAdmins(ctx, middleware.Principal(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, admins)
}

// CreateUser handles POST /v1/users.
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Users.Create(ctx, middleware.Principal(c), service.NewUserInput(req))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// CreateAdmin handles POST /v1/admins.
func (h *UserHandler) CreateAdmin(c echo.Context) error {
	var req userReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Users.CreateAdmin(ctx, middleware.Principal(c), service.NewUserInput(req))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// UpdateUser handles PUT /v1/users/:id.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	var req editUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Users.Update(ctx, middleware.Principal(c), c.Param("id"), service.EditUserInput(req))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /v1/users/:id.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Users.Delete(ctx, middleware.Principal(c), c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	h.purgeCodes(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted successfully"})
}

// DeleteAdmin handles DELETE /v1/admins/:id.
func (h *UserHandler) DeleteAdmin(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Users.DeleteAdmin(ctx, middleware.Principal(c), c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	h.purgeCodes(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "admin deleted successfully"})
}
