// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"log/slog"

	"codeberg.org/coursemix/coursemix/internal/appcontext"
	"codeberg.org/coursemix/coursemix/internal/handlers"
	"codeberg.org/coursemix/coursemix/internal/models"
	"codeberg.org/coursemix/coursemix/internal/repository"
	"codeberg.org/coursemix/coursemix/internal/services/session"
	"github.com/labstack/echo/v4"
)

// UserLoader loads the account behind a session.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware wraps the request in an appcontext.Context and attaches
// the user of a valid session cookie.
func AuthMiddleware(sessMgr *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := appcontext.Wrap(c)

			data, err := sessMgr.Parse(c.Request())
			if err != nil || data == nil {
				return next(cc)
			}

			user, err := users.GetUserByID(c.Request().Context(), data.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					slog.ErrorContext(c.Request().Context(), "session_user_lookup_failed",
						"user_id", data.UserID,
						"error", err,
					)
				}
				return next(cc)
			}

			cc.User = user
			return next(cc)
		}
	}
}

// RequireAuth rejects requests without an authenticated user.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if appcontext.UserFrom(c) == nil {
				return handlers.Unauthorized(c)
			}
			return next(c)
		}
	}
}
