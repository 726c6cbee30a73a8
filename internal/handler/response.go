package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/directchat/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeServiceError renders a service sentinel as a status and envelope.
// Anything unrecognised becomes a 500 carrying fallback.
func writeServiceError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "not found"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrSelfMessage),
		errors.Is(err, service.ErrInvalidMedia):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrMediaUnavailable):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("media_unavailable", err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", fallback))
	}
}
