package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope for every JSON reply.
type Response[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// ErrorDetail describes one reason a request failed.
type ErrorDetail struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, Response[any]{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func success(c echo.Context, data any) error {
	return dataResponse(c, http.StatusOK, data)
}

func failure(c echo.Context, status int, code, message string) error {
	return dataResponse(c, status, []ErrorDetail{{Code: code, Message: message}})
}
