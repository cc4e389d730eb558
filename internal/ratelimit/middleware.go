package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skotchmaster/auth_service/pkg/logging"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderRetry     = "Retry-After"
)

// ErrLimited is the internal error of every 429 the middleware answers.
var ErrLimited = errors.New("rate limited")

type MiddlewareConfig struct {
	Limiter Limiter
	Policy  Policy
	// Message is the error text of the 429 body.
	Message string
	// Rejected counts throttled requests by scope when set.
	Rejected *prometheus.CounterVec
	Now      func() time.Time
}

// Middleware gates a route with cfg.Policy. A limiter failure lets the
// request through.
func Middleware(cfg MiddlewareConfig) echo.MiddlewareFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests. Please try again later."
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			client := ClientIdentifier(c.Request())

			res, err := cfg.Limiter.Check(ctx, cfg.Policy, client)
			if err != nil {
				logging.FromContext(ctx).Warn("rate_limit_unavailable",
					"scope", cfg.Policy.Scope, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set(HeaderLimit, strconv.Itoa(res.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
			h.Set(HeaderReset, res.ResetAt.UTC().Format(time.RFC3339))

			if res.Allowed {
				return next(c)
			}

			retry := res.RetryAfter(cfg.Now())
			h.Set(HeaderRetry, strconv.Itoa(retry))
			if cfg.Rejected != nil {
				cfg.Rejected.WithLabelValues(cfg.Policy.Scope).Inc()
			}
			logging.FromContext(ctx).Warn("rate_limited",
				"scope", cfg.Policy.Scope, "client", client, "retry_after", retry)

			return echo.NewHTTPError(http.StatusTooManyRequests, echo.Map{
				"error":      cfg.Message,
				"retryAfter": retry,
			}).SetInternal(ErrLimited)
		}
	}
}
