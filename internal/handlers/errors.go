// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/coursemix/coursemix/internal/i18n"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Fail writes a JSON error with a localized message.
func Fail(c echo.Context, status int, messageID string) error {
	return FailData(c, status, messageID, nil)
}

// FailData writes a JSON error with a localized message rendered from data.
func FailData(c echo.Context, status int, messageID string, data map[string]any) error {
	msg := i18n.TData(c.Request().Context(), messageID, data)
	return c.JSON(status, errorResponse{Error: msg})
}

// BadRequest writes a 400 error.
func BadRequest(c echo.Context, messageID string) error {
	return Fail(c, http.StatusBadRequest, messageID)
}

// InternalServerError logs err and writes a 500 error.
func InternalServerError(c echo.Context, event string, err error) error {
	slog.ErrorContext(c.Request().Context(), event,
		"error", err,
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	return Fail(c, http.StatusInternalServerError, "error_internal")
}

// Unauthorized writes a 401 error.
func Unauthorized(c echo.Context) error {
	return Fail(c, http.StatusUnauthorized, "error_unauthorized")
}

// message is the localized text for a success response.
func message(c echo.Context, messageID string) string {
	return i18n.T(c.Request().Context(), messageID)
}
