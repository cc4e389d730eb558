package loggingmw

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/pkg/logging"
)

// RequestLogger attaches a request-scoped logger to the request context and
// logs one line per completed request. Must run after echo's RequestID
// middleware for request_id to be populated.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			attrs := []any{
				"method", req.Method,
				"route", c.Path(),
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
				"user_agent", req.UserAgent(),
			}
			rid := res.Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = req.Header.Get(echo.HeaderXRequestID)
			}
			if rid != "" {
				attrs = append(attrs, "request_id", rid)
			}
			l := base.With(attrs...)
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo render the error so the logged status is the one the client saw
				c.Error(err)
			}
			status := res.Status
			elapsed := time.Since(start).Milliseconds()

			switch {
			case status >= 500:
				l.Error("request_completed", "status", status, "duration_ms", elapsed, "error", errString(err))
			case status >= 400:
				l.Warn("request_completed", "status", status, "duration_ms", elapsed)
			default:
				l.Info("request_completed", "status", status, "duration_ms", elapsed, "bytes", res.Size)
			}
			return nil
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
