package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/config"
)

const (
	// GuestSessionCookie holds the anonymous visitor id.
	GuestSessionCookie = "guest_session"
	// GuestSessionTTL is fixed; the cookie is not renewed on later requests.
	GuestSessionTTL = 30 * 24 * time.Hour

	ctxGuestSession = "guest_session_id"
)

var uuidV4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ValidGuestSessionID reports whether id is a lowercase UUID v4.
func ValidGuestSessionID(id string) bool { return uuidV4.MatchString(id) }

// GuestSession gives every visitor a guest session id.  A well-formed
// cookie is reused as is; anything else is replaced by a fresh UUID v4.
// The id is available to handlers through GuestSessionID whether or not
// the caller is also logged in.
func GuestSession(cfg config.CookieConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(GuestSessionCookie); err == nil && ValidGuestSessionID(ck.Value) {
				id = ck.Value
			} else {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     GuestSessionCookie,
					Value:    id,
					Path:     "/",
					Domain:   cfg.Domain,
					MaxAge:   int(GuestSessionTTL / time.Second),
					Expires:  time.Now().Add(GuestSessionTTL),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(ctxGuestSession, id)
			return next(c)
		}
	}
}

// GuestSessionID returns the id resolved by GuestSession, or "" when the
// middleware did not run.
func GuestSessionID(c echo.Context) string {
	id, _ := c.Get(ctxGuestSession).(string)
	return id
}
