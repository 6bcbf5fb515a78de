package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope of every /api reply.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func successResponse(c echo.Context, data any) error {
	return dataResponse(c, http.StatusOK, data)
}

func badRequestResponse(c echo.Context, reason string) error {
	return c.JSON(http.StatusBadRequest, Response{
		Status:  http.StatusBadRequest,
		Message: reason,
	})
}

// errorHandler renders echo errors with the same envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := http.StatusText(status)
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	}
	_ = c.JSON(status, Response{Status: status, Message: message})
}
