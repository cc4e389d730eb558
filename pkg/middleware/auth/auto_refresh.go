// Package middleware guards routes of services that delegate session trust to
// the auth service.
package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/pkg/authclient"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

type AutoRefreshMiddleware struct {
	AuthClient *authclient.Client
}

func NewAutoRefreshMiddleware(authClient *authclient.Client) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{AuthClient: authClient}
}

type ValidatorFunc func(s *authclient.Session) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(s *authclient.Session) error {
		if s.User.Role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, echo.Map{"error": "Forbidden"})
		}
		return nil
	})
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ck, err := c.Cookie(authclient.CookieName)
		if err != nil || ck.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}

		s, err := m.AuthClient.Session(c.Request().Context(), ck.Value)
		if err != nil {
			if errors.Is(err, authclient.ErrUnauthenticated) {
				clearSessionCookie(c)
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
			}
			logging.FromContext(c.Request().Context()).Error("session_check_failed", "error", err)
			return echo.NewHTTPError(http.StatusBadGateway, echo.Map{"error": "Auth service unavailable"})
		}

		// forward the reissued credential even if the validator refuses
		if s.Renewed != nil {
			c.SetCookie(s.Renewed)
		}
		if validator != nil {
			if vErr := validator(s); vErr != nil {
				return vErr
			}
		}

		c.Set("user_id", s.User.ID)
		c.Set("role", s.User.Role)
		return next(c)
	}
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     authclient.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
