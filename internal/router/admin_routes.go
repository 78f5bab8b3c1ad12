package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/handler"
	"github.com/iliyamo/storefront-identity/internal/middleware"
	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

// RegisterAdmin registers admin-scoped endpoints under /v1/admin.
// All routes require a valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, issuer *utils.TokenIssuer, loginPath string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(issuer, loginPath),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/users/:id/revoke-sessions", a.RevokeSessions)
}
