package password

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	MinLength = 8
	MaxLength = 128
)

const (
	MsgTooShort    = "Password must be at least 8 characters long"
	MsgTooLong     = "Password must be less than 128 characters"
	MsgNoLower     = "Password must contain at least one lowercase letter"
	MsgNoUpper     = "Password must contain at least one uppercase letter"
	MsgNoDigit     = "Password must contain at least one number"
	MsgNoSymbol    = "Password must contain at least one special character"
	MsgTooCommon   = "Password is too common. Please choose a stronger password"
	MsgInvalidMail = "Invalid email address"
)

// commonPasswords is matched as a case-insensitive substring.
var commonPasswords = []string{
	"password", "password123", "12345678", "qwerty", "abc123", "monkey",
	"1234567890", "letmein", "trustno1", "dragon", "baseball", "iloveyou",
	"master", "sunshine", "ashley", "bailey", "shadow", "1234567", "1234",
	"superman", "qazwsx", "michael", "football",
}

type Strength struct {
	Valid  bool
	Errors []string
}

// First returns the primary violation, or "" for a valid password.
func (s Strength) First() string {
	if len(s.Errors) == 0 {
		return ""
	}
	return s.Errors[0]
}

// ValidateStrength reports every rule the password violates, in a fixed order.
func ValidateStrength(pw string) Strength {
	var errs []string

	n := utf8.RuneCountInString(pw)
	if n < MinLength {
		errs = append(errs, MsgTooShort)
	}
	if n > MaxLength {
		errs = append(errs, MsgTooLong)
	}

	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	if !lower {
		errs = append(errs, MsgNoLower)
	}
	if !upper {
		errs = append(errs, MsgNoUpper)
	}
	if !digit {
		errs = append(errs, MsgNoDigit)
	}
	if !symbol {
		errs = append(errs, MsgNoSymbol)
	}
	if isCommon(pw) {
		errs = append(errs, MsgTooCommon)
	}

	return Strength{Valid: len(errs) == 0, Errors: errs}
}

func isCommon(pw string) bool {
	lower := strings.ToLower(pw)
	for _, c := range commonPasswords {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

// NormalizeEmail is applied before every lookup and write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail accepts a bare address such as "a@b.c", not a display-name form.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
