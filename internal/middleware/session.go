// Package middleware guards routes that need a trusted session.
package middleware

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

const (
	CtxUserID = "user_id"
	CtxClaims = "claims"

	DefaultLoginPath = "/login"
)

type Session struct {
	Validator *session.Validator
	Cookies   session.Cookies
	Metrics   *metrics.Metrics
	LoginPath string
}

// RequireSession answers 401 to requests without a trusted session.
func (s *Session) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, err := s.authenticate(c)
		if err != nil {
			return err
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}
		return next(c)
	}
}

// Gatekeeper sends browsers without a trusted session to the login page,
// remembering where they were headed.
func (s *Session) Gatekeeper(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, err := s.authenticate(c)
		if err != nil {
			return err
		}
		if !ok {
			login := s.LoginPath
			if login == "" {
				login = DefaultLoginPath
			}
			target := login + "?callbackUrl=" + url.QueryEscape(c.Request().URL.RequestURI())
			return c.Redirect(http.StatusFound, target)
		}
		return next(c)
	}
}

// authenticate reports false for a missing or untrusted credential. Only a
// store failure comes back as an error.
func (s *Session) authenticate(c echo.Context) (bool, error) {
	l := logging.FromContext(c.Request().Context()).With("mw", "session")

	raw := s.Cookies.Read(c.Request())
	if raw == "" {
		s.Metrics.Session("missing")
		return false, nil
	}

	verdict, err := s.Validator.Validate(c.Request().Context(), raw)
	if err != nil {
		if session.IsUnauthenticated(err) {
			s.Metrics.Session("rejected")
			l.Info("session_rejected", "reason", err.Error())
			c.SetCookie(s.Cookies.Delete())
			return false, nil
		}
		s.Metrics.Session("error")
		l.Error("session_check_failed", "error", err)
		return false, echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if verdict.Renewed != "" {
		s.Metrics.Session("renewed")
		c.SetCookie(s.Cookies.Create(verdict.Renewed, verdict.Claims.ExpiresAt.Time))
	} else {
		s.Metrics.Session("ok")
	}

	id, _ := verdict.Claims.UserID()
	c.Set(CtxUserID, id)
	c.Set(CtxClaims, verdict.Claims)
	return true, nil
}

func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(CtxUserID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func Claims(c echo.Context) *session.Claims {
	cl, _ := c.Get(CtxClaims).(*session.Claims)
	return cl
}
