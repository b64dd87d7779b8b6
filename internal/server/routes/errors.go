package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/internal/server/middleware"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
)

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUpstreamUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c echo.Context, err error) error {
	ac := c.(*middleware.AppContext)
	status := statusFor(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("[Server] Request failed", "path", c.Path(), "request_id", ac.RequestID, "err", err)
		msg = http.StatusText(status)
	}
	return c.JSON(status, errorResponse{Message: msg, RequestID: ac.RequestID})
}

func badRequest(c echo.Context, msg string) error {
	ac := c.(*middleware.AppContext)
	return c.JSON(http.StatusBadRequest, errorResponse{Message: msg, RequestID: ac.RequestID})
}
