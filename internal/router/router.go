package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-qr-provisioning/internal/handler"
	"github.com/iliyamo/theater-qr-provisioning/internal/middleware"
	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check and the scan counter hit by printed codes.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, scans *handler.ScanHandler) {
	e.GET("/healthz", health.Health)
	e.GET("/v1/scan", scans.Record)
}

// RegisterAuth registers the token endpoints under /v1/auth.  Accounts are
// created by admins, so register sits behind JWT and the ADMIN role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// new access token, same refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	// accepts a refresh_token body, a bearer token, or both
	g.POST("/logout", a.Logout)
	g.POST("/register", a.Register,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleOperator),
	)
	auth.GET("/me", a.Me)
}
