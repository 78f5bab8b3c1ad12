package middleware

// identity.go exposes what the other middleware learned about the caller
// to handlers.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

// CurrentUserID returns the authenticated user id, or "" for guests.
func CurrentUserID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// CurrentClaims returns the verified access-token claims, or nil.
func CurrentClaims(c echo.Context) *utils.AccessClaims {
	cl, _ := c.Get(ctxClaims).(*utils.AccessClaims)
	return cl
}

// OwnerKey resolves who owns the request's cart and wishlist: the user when
// authenticated, otherwise the guest session.  The zero key means neither
// is known.
func OwnerKey(c echo.Context) model.OwnerKey {
	if id := CurrentUserID(c); id != "" {
		return model.UserOwner(id)
	}
	if sid := GuestSessionID(c); sid != "" {
		return model.GuestOwner(sid)
	}
	return model.OwnerKey{}
}

// ClientMeta collects the request details stored alongside refresh tokens.
func ClientMeta(c echo.Context) model.ClientMeta {
	ua := c.Request().UserAgent()
	return model.ClientMeta{
		DeviceInfo: c.Request().Header.Get("X-Device-Info"),
		ClientIP:   c.RealIP(),
		UserAgent:  ua,
	}
}

// rateKeyUser identifies the caller in rate-limit keys.
func rateKeyUser(c echo.Context) string {
	if id := CurrentUserID(c); id != "" {
		return id
	}
	return "guest"
}
