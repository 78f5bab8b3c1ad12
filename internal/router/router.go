package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-identity/internal/config"
	"github.com/iliyamo/storefront-identity/internal/handler"
	"github.com/iliyamo/storefront-identity/internal/middleware"
	"github.com/iliyamo/storefront-identity/internal/ratelimit"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

// UseGatekeeper installs the middleware every request passes through, in
// order: request id and logger, guest session, CSRF.  Authentication is
// attached per route group.
func UseGatekeeper(e *echo.Echo, log zerolog.Logger, cookies config.CookieConfig) {
	e.Use(middleware.RequestID(log))
	e.Use(middleware.GuestSession(cookies))
	e.Use(middleware.CSRF(cookies))
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// Throttle holds the login/registration rate limit.
type Throttle struct {
	Limiter ratelimit.Limiter
	Limit   int
	Window  time.Duration
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// protected /v1/me.  Register and login are throttled per client; the
// email probe does its own non-revealing throttling.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *utils.TokenIssuer, loginPath string, t Throttle) {
	g := e.Group("/v1/auth")
	if t.Limiter != nil && t.Limit > 0 {
		g.POST("/register", a.Register, middleware.RateLimit(t.Limiter, "register", t.Limit, t.Window))
		g.POST("/login", a.Login, middleware.RateLimit(t.Limiter, "login", t.Limit, t.Window))
	} else {
		g.POST("/register", a.Register)
		g.POST("/login", a.Login)
	}
	g.POST("/refresh", a.Refresh)
	// logout works with a refresh token alone; an access token widens it to
	// every session
	g.POST("/logout", a.Logout, middleware.OptionalAuth(issuer))
	g.POST("/check-email", a.CheckEmail)

	e.POST("/v1/logout", a.Logout, middleware.OptionalAuth(issuer))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(issuer, loginPath))
}
