package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/ratelimit"
)

var limitMessages = map[string]string{
	ratelimit.ScopeLogin:         "Too many login attempts. Please try again in 15 minutes.",
	ratelimit.ScopeRegister:      "Too many registration attempts. Please try again later.",
	ratelimit.ScopePasswordReset: "Too many password reset requests. Please try again in an hour.",
	ratelimit.ScopeVerify:        "Too many verification requests. Please try again later.",
	ratelimit.ScopeAuth:          "Too many password change attempts. Please try again later.",
}

type Deps struct {
	AuthHandler *AuthHTTP
	Session     *middleware.Session
	Limiter     ratelimit.Limiter
	Policies    map[string]ratelimit.Policy
	Metrics     *metrics.Metrics
	CSRF        middleware.CSRFConfig
	// Ready reports whether the store is reachable.
	Ready func(ctx context.Context) error
}

func (d *Deps) limit(scope string) echo.MiddlewareFunc {
	cfg := ratelimit.MiddlewareConfig{
		Limiter: d.Limiter,
		Policy:  d.Policies[scope],
		Message: limitMessages[scope],
	}
	if d.Metrics != nil {
		cfg.Rejected = d.Metrics.RateLimited
	}
	return ratelimit.Middleware(cfg)
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "not ready"})
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	h := d.AuthHandler
	api := e.Group("/api/v1/auth", middleware.CSRF(d.CSRF))

	api.POST("/register", h.Register, d.limit(ratelimit.ScopeRegister))
	api.POST("/login", h.Login, d.limit(ratelimit.ScopeLogin))
	api.POST("/logout", h.LogOut)
	api.POST("/forgot-password", h.ForgotPassword, d.limit(ratelimit.ScopePasswordReset))
	api.POST("/reset-password", h.ResetPassword, d.limit(ratelimit.ScopePasswordReset))
	api.POST("/resend-verification", h.ResendVerification, d.limit(ratelimit.ScopeVerify))
	api.GET("/verify", h.Verify, d.limit(ratelimit.ScopeVerify))

	private := api.Group("", d.Session.RequireSession)
	private.POST("/change-password", h.ChangePassword, d.limit(ratelimit.ScopeAuth))
	private.POST("/delete-account", h.DeleteAccount, d.limit(ratelimit.ScopeAuth))
	private.GET("/profile", h.Profile)
	private.PUT("/profile", h.UpdateProfile)
	private.GET("/session", h.Session)

	pages := e.Group("/dashboard", d.Session.Gatekeeper)
	pages.GET("", dashboard)
	pages.GET("/*", dashboard)
}

// dashboard stands in for the protected pages rendered elsewhere.
func dashboard(c echo.Context) error {
	claims := middleware.Claims(c)
	return c.JSON(http.StatusOK, echo.Map{"page": c.Request().URL.Path, "email": claims.Email})
}
