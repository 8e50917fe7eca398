// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/coursemix/coursemix/internal/handlers"
	"github.com/labstack/echo/v4"
)

// routeHandlers groups everything setupRoutes mounts.
type routeHandlers struct {
	base   *handlers.Handlers
	auth   *handlers.AuthHandlers
	grades *handlers.GradeHandlers
}

func setupRoutes(e *echo.Echo, h routeHandlers) {
	e.GET("/health", h.base.Health)

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/send-verification", h.auth.SendVerification)
	auth.POST("/verify", h.auth.Verify)
	auth.POST("/complete-registration", h.auth.CompleteRegistration)
	auth.POST("/send-reset-code", h.auth.SendResetCode)
	auth.POST("/verify-reset-code", h.auth.VerifyResetCode)
	auth.POST("/reset-password", h.auth.ResetPassword)
	auth.POST("/login", h.auth.Login)
	auth.POST("/logout", h.auth.Logout)

	grades := api.Group("/grades", RequireAuth())
	grades.POST("", h.grades.Create)
	grades.GET("", h.grades.List)
	grades.GET("/summary", h.grades.Summary)
	grades.PUT("/:id", h.grades.Update)
	grades.DELETE("/:id", h.grades.Delete)
}
