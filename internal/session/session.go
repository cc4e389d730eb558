// Package session mints and checks the signed session credential.
//
// Trust policy: refresh-validated. A credential carries the time it was last
// checked against the store (chk). Once that is older than the revalidation
// interval the user record is read again; a missing or unverified user, or a
// bumped session version, rejects the credential. Otherwise it is reissued
// with a fresh chk and the original expiry.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/models"
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	Issuer     = "auth_service"
)

var (
	ErrNoSecret       = errors.New("session secret is not configured")
	ErrNoSession      = errors.New("no session credential")
	ErrInvalidSession = errors.New("invalid session credential")
	ErrRevoked        = errors.New("session revoked")
)

// Claims never include the password hash.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
	Version       int    `json:"ver"`
	CheckedAt     int64  `json:"chk"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Signer)

func WithTTL(d time.Duration) Option {
	return func(s *Signer) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSigner(secret []byte, opts ...Option) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	s := &Signer{secret: secret, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Signer) TTL() time.Duration { return s.ttl }

// Issue mints a credential for u valid for the signer TTL.
func (s *Signer) Issue(u *models.User) (string, *Claims, error) {
	now := s.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Email:         u.Email,
		EmailVerified: u.IsVerified(),
		Role:          u.Role,
		Version:       u.SessionVersion,
		CheckedAt:     now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok, err := s.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return tok, claims, nil
}

// Renew re-signs claims with the current state of u and a fresh check time.
// Issued-at and expiry are kept, so renewal never extends a session.
func (s *Signer) Renew(c *Claims, u *models.User) (string, *Claims, error) {
	next := *c
	next.Email = u.Email
	next.EmailVerified = u.IsVerified()
	next.Role = u.Role
	next.CheckedAt = s.now().UTC().Unix()
	tok, err := s.sign(&next)
	if err != nil {
		return "", nil, err
	}
	return tok, &next, nil
}

func (s *Signer) sign(c *Claims) (string, error) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return tok, nil
}

// Parse verifies the signature and expiry of tokenStr.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrNoSession
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
	)
	tkn, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return s.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	return &claims, nil
}
