package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

const (
	msgRegistered    = "User registered successfully"
	msgLoggedIn      = "Login successful"
	msgLoggedOut     = "Logged out"
	msgResetSent     = "If that email exists, we've sent a password reset link."
	msgResetDone     = "Password reset successfully"
	msgVerifySent    = "If that email exists and is unverified, we've sent a verification email."
	msgPasswordDone  = "Password changed successfully. Please log in again."
	msgAccountGone   = "Account deleted successfully"
	msgProfileUpdate = "Profile updated successfully"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies session.Cookies
	// AppURL prefixes the login redirects of the verify link.
	AppURL string
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return badBody(err)
	}

	if _, err := h.Svc.Register(ctx, service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password}); err != nil {
		return writeError(c, "register", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "message": msgRegistered})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return badBody(err)
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, "login", err)
	}

	c.SetCookie(h.Cookies.Create(res.Token, res.ExpiresAt))
	return c.JSON(http.StatusOK, echo.Map{
		"message": msgLoggedIn,
		"user":    loginView(res.User),
	})
}

// LogOut only drops the cookie. Outstanding credentials stay valid until
// they expire or the session version moves.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	c.SetCookie(h.Cookies.Delete())
	logging.FromContext(c.Request().Context()).Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": msgLoggedOut})
}

func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := h.Svc.ForgotPassword(ctx, req.Email); err != nil {
		return writeError(c, "forgot_password", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msgResetSent})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := h.Svc.ResetPassword(ctx, req.Token, req.Email, req.Password); err != nil {
		return writeError(c, "reset_password", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msgResetDone})
}

func (h *AuthHTTP) ResendVerification(c echo.Context) error {
	ctx := c.Request().Context()

	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := h.Svc.ResendVerification(ctx, req.Email); err != nil {
		return writeError(c, "resend_verification", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msgVerifySent})
}

// Verify is the target of the emailed link, so every outcome is a redirect
// to the login page.
func (h *AuthHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	token, email := c.QueryParam("token"), c.QueryParam("email")

	err := h.Svc.VerifyEmail(ctx, token, email)
	var outcome string
	switch {
	case err == nil:
		outcome = "?verified=true"
	case errors.Is(err, service.ErrInvalidInput):
		outcome = ""
	case errors.Is(err, service.ErrTokenExpired):
		outcome = "?verified=expired"
	case errors.Is(err, service.ErrAlreadyVerified):
		outcome = "?verified=already"
	case errors.Is(err, service.ErrTokenMismatch):
		outcome = "?verified=false"
	default:
		return writeError(c, "verify_email", err)
	}
	return c.Redirect(http.StatusFound, strings.TrimRight(h.AppURL, "/")+"/login"+outcome)
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, "change_password", service.ErrUnauthorized)
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := h.Svc.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, "change_password", err)
	}

	c.SetCookie(h.Cookies.Delete())
	return c.JSON(http.StatusOK, echo.Map{"message": msgPasswordDone})
}

func (h *AuthHTTP) DeleteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, "delete_account", service.ErrUnauthorized)
	}

	var req deleteAccountRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	if err := h.Svc.DeleteAccount(ctx, userID, req.Password, req.ConfirmText); err != nil {
		return writeError(c, "delete_account", err)
	}

	c.SetCookie(h.Cookies.Delete())
	return c.JSON(http.StatusOK, echo.Map{"message": msgAccountGone})
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, "profile", service.ErrUnauthorized)
	}
	u, err := h.Svc.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, "profile", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": profileView(u)})
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return writeError(c, "update_profile", service.ErrUnauthorized)
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badBody(err)
	}
	u, err := h.Svc.UpdateProfile(c.Request().Context(), userID, req.Name)
	if err != nil {
		return writeError(c, "update_profile", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msgProfileUpdate, "user": updatedView(u)})
}

// Session echoes the trusted claims the gatekeeper attached.
func (h *AuthHTTP) Session(c echo.Context) error {
	cl := middleware.Claims(c)
	if cl == nil {
		return writeError(c, "session", service.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, sessionView{
		User: sessionUser{
			ID:            cl.Subject,
			Email:         cl.Email,
			EmailVerified: cl.EmailVerified,
			Role:          cl.Role,
		},
		ExpiresAt: cl.ExpiresAt.Time,
	})
}
