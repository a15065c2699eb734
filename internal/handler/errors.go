package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindInvalidFormat:   http.StatusBadRequest,
	service.KindInvalidCount:    http.StatusBadRequest,
	service.KindInvalidTarget:   http.StatusBadRequest,
	service.KindInvalidLocation: http.StatusBadRequest,
	service.KindInvalidInput:    http.StatusBadRequest,
	service.KindDuplicateValue:  http.StatusBadRequest,
	service.KindUnauthenticated: http.StatusUnauthorized,
	service.KindForbidden:       http.StatusForbidden,
	service.KindNotFound:        http.StatusNotFound,
	service.KindNoEligibleUsers: http.StatusNotFound,
	service.KindConflict:        http.StatusConflict,
	service.KindEmailExists:     http.StatusConflict,
}

// StatusOf maps a service error to its HTTP status.
func StatusOf(err error) int {
	if s, ok := kindStatus[service.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// fail writes {"error", "kind"} for err.  Internal errors are logged and
// reported with a generic message.
func fail(c echo.Context, log *zap.Logger, err error) error {
	kind := service.KindOf(err)
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
		msg = "internal server error"
	}
	return c.JSON(status, echo.Map{"error": msg, "kind": kind})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "kind": service.KindInvalidInput})
}
