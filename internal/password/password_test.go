package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_SaltedAndVerifiable(t *testing.T) {
	t.Parallel()

	h1, err := Hash("Str0ng!Pass")
	require.NoError(t, err)
	h2, err := Hash("Str0ng!Pass")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NotContains(t, h1, "Str0ng!Pass")
	assert.True(t, Check(h1, "Str0ng!Pass"))
	assert.True(t, Check(h2, "Str0ng!Pass"))
	assert.False(t, Check(h1, "str0ng!pass"))
}

func TestHash_Empty(t *testing.T) {
	t.Parallel()

	_, err := Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHash_LongPasswordKeepsTail(t *testing.T) {
	t.Parallel()

	base := strings.Repeat("Ab1!", 25)
	h, err := Hash(base + "x")
	require.NoError(t, err)

	assert.True(t, Check(h, base+"x"))
	assert.False(t, Check(h, base+"y"))
}

func TestCheck_MalformedHash(t *testing.T) {
	t.Parallel()

	assert.False(t, Check("not-a-bcrypt-hash", "whatever"))
	assert.False(t, Check("", "whatever"))
	assert.False(t, Check(DummyHash, ""))
}

func TestValidateStrength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pw    string
		valid bool
		first string
		has   []string
	}{
		{name: "strong", pw: "Str0ng!Pass", valid: true},
		{name: "short", pw: "Ab1!", first: MsgTooShort},
		{name: "too long", pw: strings.Repeat("Ab1!", 33), first: MsgTooLong},
		{name: "no lower", pw: "STR0NG!PASS", first: MsgNoLower},
		{name: "no upper", pw: "str0ng!pass", first: MsgNoUpper},
		{name: "no digit", pw: "Strong!Pass", first: MsgNoDigit},
		{name: "no symbol", pw: "Str0ngPass", first: MsgNoSymbol},
		{name: "common substring", pw: "Xy!Password9", first: MsgTooCommon},
		{name: "short common substring", pw: "Zz!x1234yy", first: MsgTooCommon},
		{
			name:  "all violations reported",
			pw:    "abc",
			first: MsgTooShort,
			has:   []string{MsgTooShort, MsgNoUpper, MsgNoDigit, MsgNoSymbol},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := ValidateStrength(tt.pw)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.first, res.First())
			for _, msg := range tt.has {
				assert.Contains(t, res.Errors, msg)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user@example.com", NormalizeEmail(" User@Example.com "))
	assert.Equal(t, NormalizeEmail("USER@example.COM"), NormalizeEmail("user@example.com\t"))
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidEmail("alice@ex.com"))
	assert.True(t, ValidEmail(" alice@ex.com "))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("alice"))
	assert.False(t, ValidEmail("alice@localhost"))
	assert.False(t, ValidEmail("Alice <alice@ex.com>"))
}
