package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/middleware"
	"github.com/addwise/addwise-hub/internal/service"
)

// Purger drops cached public lookups after a mutation.
// *middleware.ResponseCache implements it.
type Purger interface {
	Purge(ctx context.Context, path string)
	PurgeAll(ctx context.Context)
}

// QRHandler exposes the QR registry, assignment and issuance operations.
type QRHandler struct {
	QR      *service.QRService
	Cache   Purger
	Log     *zap.Logger
	Timeout time.Duration
}

func NewQRHandler(qr *service.QRService, cache Purger, log *zap.Logger, timeout time.Duration) *QRHandler {
	return &QRHandler{QR: qr, Cache: cache, Log: log, Timeout: timeout}
}

// ----- DTOs -----

type generateReq struct {
	Count  int    `json:"count"`
	UserID string `json:"userId"`
}

type locationReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

type assignReq struct {
	QRValue  string       `json:"qrValue"`
	Location *locationReq `json:"location"`
}

type pushReq struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address"`
}

func (h *QRHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// purge drops the cached public lookup of id.
func (h *QRHandler) purge(c echo.Context, id string) {
	if h.Cache != nil {
		h.Cache.Purge(c.Request().Context(), "/v1/qrcode/"+id)
	}
}

// Generate handles POST /v1/qrcodes/generate.
func (h *QRHandler) Generate(c echo.Context) error {
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 4*h.Timeout)
	defer cancel()

	res, err := h.QR.Issue(ctx, middleware.Principal(c), req.Count, req.UserID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListAll handles GET /v1/qrcodes.
func (h *QRHandler) ListAll(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	codes, err := h.QR.ListAll(ctx, middleware.Principal(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, codes)
}

// ListMine handles GET /v1/my-qrcodes.
func (h *QRHandler) ListMine(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	codes, err := h.QR.ListForOwner(ctx, middleware.Principal(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, codes)
}

// decodeUpdate reads {qrValue?, createdBy?}.  createdBy is applied when the
// key is present, so null and "" both unassign.
func decodeUpdate(body []byte) (service.UpdateInput, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return service.UpdateInput{}, err
	}
	var in service.UpdateInput
	if v, ok := raw["qrValue"]; ok && !isNull(v) {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return service.UpdateInput{}, err
		}
		in.QRValue = &s
	}
	if v, ok := raw["createdBy"]; ok {
		in.SetCreatedBy = true
		if !isNull(v) {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return service.UpdateInput{}, err
			}
			in.CreatedBy = &s
		}
	}
	return in, nil
}

func isNull(v json.RawMessage) bool { return bytes.Equal(bytes.TrimSpace(v), []byte("null")) }

// Update handles PUT /v1/qrcodes/:id.
func (h *QRHandler) Update(c echo.Context) error {
	var body json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	in, err := decodeUpdate(body)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	id := c.Param("id")
	code, err := h.QR.Update(ctx, middleware.Principal(c), id, in)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.purge(c, id)
	return c.JSON(http.StatusOK, code)
}

// Delete handles DELETE /v1/qrcodes/:id.
func (h *QRHandler) Delete(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	id := c.Param("id")
	if err := h.QR.Delete(ctx, middleware.Principal(c), id); err != nil {
		return fail(c, h.Log, err)
	}
	h.purge(c, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "QR code deleted successfully"})
}

// DeleteAll handles DELETE /v1/qrcodes.
func (h *QRHandler) DeleteAll(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	n, err := h.QR.DeleteAll(ctx, middleware.Principal(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if h.Cache != nil {
		h.Cache.PurgeAll(c.Request().Context())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "all QR codes deleted", "deletedCount": n})
}

// Assign handles POST /v1/qrcodes/assign.
func (h *QRHandler) Assign(c echo.Context) error {
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	var loc *service.LocationInput
	if req.Location != nil {
		loc = &service.LocationInput{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Address:   req.Location.Address,
		}
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	code, err := h.QR.Assign(ctx, middleware.Principal(c), req.QRValue, loc)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.purge(c, code.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "QR code assigned successfully", "qrCode": code})
}

// Get handles GET /v1/qrcode/:id.  It is public and served through the
// response cache.
func (h *QRHandler) Get(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	code, err := h.QR.Get(ctx, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"qrCode": code})
}

// PushLocation handles POST /v1/qr/:ref/location.
func (h *QRHandler) PushLocation(c echo.Context) error {
	var req pushReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	code, err := h.QR.PushLocation(ctx, c.Param("ref"), service.LocationInput{
		Latitude:  req.Lat,
		Longitude: req.Lng,
		Address:   req.Address,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.purge(c, code.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "location updated", "qrCode": code})
}
