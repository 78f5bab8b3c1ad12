package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/utils"
)

// AccessCookie carries the access token for browser clients.
const AccessCookie = "token"

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
	ctxClaims = "claims"
)

// JWTAuth rejects requests without a valid access token.  The token is read
// from the Authorization header first and the token cookie second.  API
// callers get 401; a browser navigation (GET accepting text/html) is sent
// to loginPath instead.  The response never says which check failed.
func JWTAuth(issuer *utils.TokenIssuer, loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := authenticate(c, issuer)
			if err != nil {
				GetLogger(c).Debug().Err(err).Msg("access token rejected")
				return unauthorized(c, loginPath)
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}

// OptionalAuth attaches the caller's identity when a valid access token is
// present and otherwise lets the request through as a guest.
func OptionalAuth(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if claims, err := authenticate(c, issuer); err == nil {
				setIdentity(c, claims)
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, issuer *utils.TokenIssuer) (*utils.AccessClaims, error) {
	raw := bearerToken(c.Request())
	if raw == "" {
		if ck, err := c.Cookie(AccessCookie); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return nil, utils.ErrUnauthenticated
	}
	return issuer.VerifyAccessToken(raw)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func setIdentity(c echo.Context, claims *utils.AccessClaims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxRole, claims.Role)
	c.Set(ctxEmail, claims.Email)
	c.Set(ctxClaims, claims)
}

func unauthorized(c echo.Context, loginPath string) error {
	req := c.Request()
	if req.Method == http.MethodGet && loginPath != "" && strings.Contains(req.Header.Get(echo.HeaderAccept), "text/html") {
		return c.Redirect(http.StatusFound, loginPath)
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
