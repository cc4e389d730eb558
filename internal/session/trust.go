package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
)

const DefaultRevalidateInterval = 5 * time.Minute

type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Verdict is the outcome of a trusted check. Renewed is set when the
// credential was revalidated and must be sent back to the client.
type Verdict struct {
	Claims  *Claims
	Renewed string
}

type Validator struct {
	Signer *Signer
	Users  UserFinder
	// Interval is how stale chk may get before the store is consulted.
	// Zero revalidates every request.
	Interval time.Duration
	Now      func() time.Time
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate parses tokenStr and applies the refresh-validated trust policy.
// ErrNoSession, ErrInvalidSession and ErrRevoked mean the caller is not
// authenticated; any other error is a store failure.
func (v *Validator) Validate(ctx context.Context, tokenStr string) (*Verdict, error) {
	claims, err := v.Signer.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	if !v.stale(claims) {
		return &Verdict{Claims: claims}, nil
	}

	id, _ := claims.UserID()
	u, err := v.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrRevoked)
		}
		return nil, fmt.Errorf("revalidate session: %w", err)
	}
	if reason := ineligible(claims, u); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrRevoked, reason)
	}

	tok, renewed, err := v.Signer.Renew(claims, u)
	if err != nil {
		return nil, err
	}
	return &Verdict{Claims: renewed, Renewed: tok}, nil
}

func (v *Validator) stale(c *Claims) bool {
	if v.Interval <= 0 {
		return true
	}
	checked := time.Unix(c.CheckedAt, 0)
	return v.now().Sub(checked) >= v.Interval
}

func ineligible(c *Claims, u *models.User) string {
	switch {
	case !u.IsVerified():
		return "email no longer verified"
	case u.SessionVersion != c.Version:
		return "credentials changed"
	case u.Email != c.Email:
		return "email changed"
	default:
		return ""
	}
}

// IsUnauthenticated reports whether err means "no trusted session" as
// opposed to an internal failure.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrInvalidSession) || errors.Is(err, ErrRevoked)
}
