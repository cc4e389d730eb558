package session

import (
	"net/http"
	"time"
)

const CookieName = "session"

type Cookies struct {
	Name   string
	Path   string
	Secure bool
}

func DefaultCookies(secure bool) Cookies {
	return Cookies{Name: CookieName, Path: "/", Secure: secure}
}

func (c Cookies) Create(value string, exp time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge := int(time.Until(exp).Seconds()); maxAge > 0 {
		ck.MaxAge = maxAge
	}
	return ck
}

func (c Cookies) Delete() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Read returns the credential from the request cookie, or "".
func (c Cookies) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}
