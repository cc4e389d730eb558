package service

import (
	"errors"

	"github.com/samber/oops"

	"github.com/Skotchmaster/auth_service/internal/ratelimit"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConflict           = errors.New("email already in use")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrTokenMismatch      = errors.New("token mismatch")
	ErrTokenExpired       = errors.New("token expired")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrSamePassword       = errors.New("new password equals current password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = ratelimit.ErrLimited
	ErrNotFound           = errors.New("user not found")
	ErrInternal           = errors.New("internal error")
)

const (
	MsgPasswordRequired        = "Password is required"
	MsgCurrentPasswordRequired = "Current password is required"
	MsgTokenRequired           = "Token is required"
	MsgNameTooShort            = "Name must be at least 2 characters"
	MsgNameTooLong             = "Name must be at most 100 characters"
	MsgConfirmDelete           = "You must type DELETE to confirm account deletion"
	MsgMissingParams           = "Token and email are required"

	DeleteConfirmation = "DELETE"
)

func invalidInput(msg string) error {
	return oops.Code("INVALID_INPUT").Public(msg).Wrap(ErrInvalidInput)
}

func internalErr(op string, err error) error {
	return oops.Code("INTERNAL").With("operation", op).Wrap(errors.Join(ErrInternal, err))
}

// PublicMessage returns the caller-safe message attached to an InvalidInput
// error, or "" when there is none.
func PublicMessage(err error) string {
	if oe, ok := oops.AsOops(err); ok {
		return oe.Public()
	}
	return ""
}

// Kind names the error kind of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, ErrTokenMismatch):
		return "token_mismatch"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrSamePassword):
		return "same_password"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
