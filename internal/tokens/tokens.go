// Package tokens implements the single-use verification and reset token
// tracks stored on the user record.
//
// Only the SHA-256 of a token is persisted; the plaintext leaves the process
// once, inside the email link. Each track holds at most one outstanding token
// and issuing a new one overwrites the previous one.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/auth_service/internal/models"
)

const TokenBytes = 32

var (
	ErrMismatch = errors.New("token mismatch")
	ErrExpired  = errors.New("token expired")
)

type Track int

const (
	Verification Track = iota
	Reset
)

func (t Track) String() string {
	switch t {
	case Verification:
		return "verification"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("track(%d)", int(t))
	}
}

// TTL is how long an issued token stays valid.
func (t Track) TTL() time.Duration {
	if t == Reset {
		return time.Hour
	}
	return 24 * time.Hour
}

func (t Track) columns() (token, expiry string) {
	if t == Reset {
		return "reset_token", "reset_token_expiry"
	}
	return "verification_token", "verification_token_expiry"
}

func (t Track) stored(u *models.User) (*string, *time.Time) {
	if t == Reset {
		return u.ResetToken, u.ResetTokenExpiry
	}
	return u.VerificationToken, u.VerificationTokenExpiry
}

type State int

const (
	None State = iota
	Pending
	Expired
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Expired:
		return "expired"
	default:
		return "none"
	}
}

// Generate returns 256 random bits, hex encoded.
func Generate() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Matches compares token against a stored hash in constant time.
func Matches(token, storedHash string) bool {
	if token == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Hash(token)), []byte(storedHash)) == 1
}

// Grant is a freshly issued token. Token is the plaintext for the email link.
type Grant struct {
	Track     Track
	Token     string
	Hash      string
	ExpiresAt time.Time
}

func Issue(track Track, now time.Time) (Grant, error) {
	tok, err := Generate()
	if err != nil {
		return Grant{}, err
	}
	return Grant{
		Track:     track,
		Token:     tok,
		Hash:      Hash(tok),
		ExpiresAt: now.Add(track.TTL()).UTC(),
	}, nil
}

// Fields is the partial update that moves the track to PENDING, replacing
// whatever token was there.
func (g Grant) Fields() map[string]any {
	tokCol, expCol := g.Track.columns()
	return map[string]any{tokCol: g.Hash, expCol: g.ExpiresAt}
}

// Cleared is the partial update that returns the track to NONE.
func Cleared(track Track) map[string]any {
	tokCol, expCol := track.columns()
	return map[string]any{tokCol: nil, expCol: nil}
}

// Guard pins the stored token hash for a compare-and-set consumption.
func Guard(track Track, u *models.User) map[string]any {
	tokCol, _ := track.columns()
	tok, _ := track.stored(u)
	if tok == nil {
		return map[string]any{tokCol: nil}
	}
	return map[string]any{tokCol: *tok}
}

// StateOf reports the track state. An expired token still occupies storage
// until overwritten but is never valid.
func StateOf(u *models.User, track Track, now time.Time) State {
	tok, exp := track.stored(u)
	if tok == nil {
		return None
	}
	if exp == nil || !now.Before(*exp) {
		return Expired
	}
	return Pending
}

// Check validates a supplied token against the user's track. Mismatch is
// checked before expiry so an expired record reveals nothing to a guesser.
func Check(u *models.User, track Track, token string, now time.Time) error {
	tok, _ := track.stored(u)
	if tok == nil || !Matches(token, *tok) {
		return ErrMismatch
	}
	if StateOf(u, track, now) != Pending {
		return ErrExpired
	}
	return nil
}
