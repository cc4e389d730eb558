package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

const (
	msgInternal           = "Internal server error"
	msgInvalidBody        = "Invalid request body"
	msgUnauthorized       = "Unauthorized"
	msgUserNotFound       = "User not found"
	msgEmailInUse         = "Email already in use"
	msgInvalidCredentials = "Invalid credentials"
	msgNotVerified        = "Please verify your email before logging in"
	msgInvalidReset       = "Invalid or expired reset token"
	msgResetExpired       = "Reset token has expired. Please request a new one."
	msgSamePassword       = "New password must be different from your current password"
	msgAlreadyVerified    = "Email is already verified"
	msgRateLimited        = "Too many requests. Please try again later."
)

// writeError maps a service error to the response for op. Internal failures
// are logged here and answered with a generic body.
func writeError(c echo.Context, op string, err error) error {
	code, msg := http.StatusInternalServerError, msgInternal

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		code, msg = http.StatusBadRequest, service.PublicMessage(err)
		if msg == "" {
			msg = msgInvalidBody
		}
	case errors.Is(err, service.ErrConflict):
		code, msg = http.StatusConflict, msgEmailInUse
	case errors.Is(err, service.ErrInvalidCredentials):
		code, msg = http.StatusUnauthorized, credentialsMessage(op)
	case errors.Is(err, service.ErrEmailNotVerified):
		code, msg = http.StatusForbidden, msgNotVerified
	case errors.Is(err, service.ErrTokenMismatch):
		code, msg = http.StatusBadRequest, msgInvalidReset
	case errors.Is(err, service.ErrTokenExpired):
		code, msg = http.StatusBadRequest, msgResetExpired
	case errors.Is(err, service.ErrSamePassword):
		code, msg = http.StatusBadRequest, msgSamePassword
	case errors.Is(err, service.ErrAlreadyVerified):
		code, msg = http.StatusBadRequest, msgAlreadyVerified
	case errors.Is(err, service.ErrUnauthorized):
		code, msg = http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, service.ErrRateLimited):
		code, msg = http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, service.ErrNotFound):
		code, msg = http.StatusNotFound, msgUserNotFound
	default:
		logging.FromContext(c.Request().Context()).Error(op+"_error", "status", code, "error", err)
	}
	return echo.NewHTTPError(code, echo.Map{"error": msg})
}

func credentialsMessage(op string) string {
	switch op {
	case "change_password":
		return "Current password is incorrect"
	case "delete_account":
		return "Invalid password"
	default:
		return msgInvalidCredentials
	}
}

func badBody(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": msgInvalidBody}).SetInternal(err)
}
