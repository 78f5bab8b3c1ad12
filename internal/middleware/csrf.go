package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/config"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

const (
	CSRFCookie = "csrf_token"
	CSRFHeader = "X-CSRF-Token"
	CSRFTTL    = 24 * time.Hour

	csrfTokenLen = 64 // 32 random bytes, hex encoded
)

// ErrCSRF is the single outcome of a failed double-submit check.  The
// cause is never reported.
var ErrCSRF = errors.New("csrf token mismatch")

// VerifyCSRF compares the header and cookie values of the double-submit
// pair.  Both must be present and exactly csrfTokenLen long before the
// constant-time comparison runs.
func VerifyCSRF(header, cookie string) error {
	if header == "" || cookie == "" {
		return ErrCSRF
	}
	if len(header) != csrfTokenLen || len(cookie) != csrfTokenLen {
		return ErrCSRF
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
		return ErrCSRF
	}
	return nil
}

// CSRF issues the csrf_token cookie to callers that lack one and verifies
// the X-CSRF-Token header on every state-changing request outside the
// exempt path prefixes.  The cookie is readable by scripts so the
// frontend can echo it; it is only regenerated when absent.
func CSRF(cfg config.CookieConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie := ""
			if ck, err := c.Cookie(CSRFCookie); err == nil {
				cookie = ck.Value
			}
			if cookie == "" {
				tok, err := utils.RandomHex(csrfTokenLen / 2)
				if err != nil {
					return err
				}
				c.SetCookie(&http.Cookie{
					Name:     CSRFCookie,
					Value:    tok,
					Path:     "/",
					Domain:   cfg.Domain,
					MaxAge:   int(CSRFTTL / time.Second),
					Expires:  time.Now().Add(CSRFTTL),
					HttpOnly: false,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteStrictMode,
				})
				// a freshly minted cookie never authorizes the request that
				// received it
			}

			if safeMethod(c.Request().Method) || exempt(c.Request().URL.Path, cfg.CSRFExemptPrefixes) {
				return next(c)
			}
			if err := VerifyCSRF(c.Request().Header.Get(CSRFHeader), cookie); err != nil {
				GetLogger(c).Warn().Str("path", c.Request().URL.Path).Msg("csrf check failed")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func exempt(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
