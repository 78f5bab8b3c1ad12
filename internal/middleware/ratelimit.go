package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-identity/internal/ratelimit"
)

// RateLimit throttles action per client IP with a fixed window of limit
// requests.  Budget state is reported in X-RateLimit-* headers and a denied
// request gets 429 with Retry-After.  When the limiter itself fails the
// request is let through.
func RateLimit(limiter ratelimit.Limiter, action string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(c, action)
			res, err := limiter.Check(c.Request().Context(), key, limit, window)
			if err != nil {
				GetLogger(c).Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				secs := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if secs < 0 {
					secs = 0
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				GetLogger(c).Info().Str("key", key).Msg("rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     ratelimit.ErrRateLimited.Error(),
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func buildRateKey(c echo.Context, action string) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{action, "ip", ip}
	// authenticated callers get their own bucket even behind a shared NAT
	if uid := rateKeyUser(c); uid != "guest" {
		parts = append(parts, "user", uid)
	}
	return strings.Join(parts, ":")
}
