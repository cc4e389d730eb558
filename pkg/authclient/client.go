// Package authclient lets other services check a browser session against the
// auth service instead of trusting the credential locally.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	SessionPath = "/api/v1/auth/session"
	CookieName  = "session"
)

var ErrUnauthenticated = errors.New("session not trusted")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type SessionUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Role          string `json:"role"`
}

type Session struct {
	User      SessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expires"`
	// Renewed is the reissued credential when the auth service revalidated
	// it, nil otherwise. Callers must hand it back to the browser.
	Renewed *http.Cookie `json:"-"`
}

// Session asks the auth service whether credential is trusted.
func (c *Client) Session(ctx context.Context, credential string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+SessionPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: CookieName, Value: credential})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("session check failed with status: %d", resp.StatusCode)
	}

	var result Session
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == CookieName && ck.Value != "" {
			result.Renewed = ck
		}
	}
	return &result, nil
}
