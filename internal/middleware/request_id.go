package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-Id"

const ctxLogger = "logger"

// RequestID assigns every request an id (reusing the caller's X-Request-Id
// when present), echoes it on the response and derives a request-scoped
// logger from base.  The logger is stored both in the echo context and in
// the request's context.Context so services can reach it with zerolog.Ctx.
func RequestID(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
				req.Header.Set(HeaderRequestID, id)
			}
			c.Response().Header().Set(HeaderRequestID, id)

			logger := base.With().Str("request_id", id).Logger()
			c.Set(ctxLogger, &logger)
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error so the logged status is the real one
				c.Error(err)
			}
			logger.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}

// GetLogger returns the request-scoped logger, or a disabled one outside a
// request.
func GetLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(ctxLogger).(*zerolog.Logger); ok {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c echo.Context) string {
	return c.Request().Header.Get(HeaderRequestID)
}
