package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/models"
)

func TestGenerate_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.Len(t, a, TokenBytes*2)
	assert.NotEqual(t, a, b)
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tok, err := Generate()
	require.NoError(t, err)

	assert.True(t, Matches(tok, Hash(tok)))
	assert.False(t, Matches(tok, Hash(tok+"x")))
	assert.False(t, Matches("", Hash("")))
	assert.False(t, Matches(tok, ""))
}

func TestTrack_TTL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 24*time.Hour, Verification.TTL())
	assert.Equal(t, time.Hour, Reset.TTL())
}

func apply(u *models.User, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "verification_token":
			u.VerificationToken = strPtr(v)
		case "verification_token_expiry":
			u.VerificationTokenExpiry = timePtr(v)
		case "reset_token":
			u.ResetToken = strPtr(v)
		case "reset_token_expiry":
			u.ResetTokenExpiry = timePtr(v)
		}
	}
}

func strPtr(v any) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func timePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	u := &models.User{}

	for _, track := range []Track{Verification, Reset} {
		track := track
		t.Run(track.String(), func(t *testing.T) {
			assert.Equal(t, None, StateOf(u, track, now))
			assert.ErrorIs(t, Check(u, track, "anything", now), ErrMismatch)

			first, err := Issue(track, now)
			require.NoError(t, err)
			apply(u, first.Fields())
			assert.Equal(t, Pending, StateOf(u, track, now))
			require.NoError(t, Check(u, track, first.Token, now))

			second, err := Issue(track, now)
			require.NoError(t, err)
			apply(u, second.Fields())
			assert.ErrorIs(t, Check(u, track, first.Token, now), ErrMismatch)
			require.NoError(t, Check(u, track, second.Token, now))

			later := now.Add(track.TTL())
			assert.Equal(t, Expired, StateOf(u, track, later))
			assert.ErrorIs(t, Check(u, track, second.Token, later), ErrExpired)
			assert.ErrorIs(t, Check(u, track, "wrong", later), ErrMismatch)

			apply(u, Cleared(track))
			assert.Equal(t, None, StateOf(u, track, now))
			assert.ErrorIs(t, Check(u, track, second.Token, now), ErrMismatch)
		})
	}
}

func TestGuard(t *testing.T) {
	t.Parallel()

	u := &models.User{}
	assert.Equal(t, map[string]any{"reset_token": nil}, Guard(Reset, u))

	h := "h"
	u.VerificationToken = &h
	assert.Equal(t, map[string]any{"verification_token": "h"}, Guard(Verification, u))
}
