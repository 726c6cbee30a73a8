package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/reqctx"
)

// RequestLogger carries the request id onto the request context and logs
// one line per request. It must run after echo's RequestID middleware.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid != "" {
				c.SetRequest(c.Request().WithContext(reqctx.WithRequestID(c.Request().Context(), rid)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			uid, _ := c.Get("uid").(string)
			ev := logger.Info()
			if status := c.Response().Status; status >= 500 {
				ev = logger.Error().Err(err)
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("request_id", rid).
				Str("uid", uid).
				Str("remote_addr", c.RealIP()).
				Msg("request completed")
			return nil
		}
	}
}
