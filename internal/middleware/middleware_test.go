package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/testdb"
)

type env struct {
	mw     *Session
	repo   *repo.GormRepo
	signer *session.Signer
	user   *models.User
	now    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }

	signer, err := session.NewSigner([]byte("mw-secret"), session.WithClock(clock))
	require.NoError(t, err)
	e.signer = signer
	e.repo = &repo.GormRepo{DB: testdb.Open(t)}

	verified := e.now
	e.user = &models.User{Email: "mw@ex.com", PasswordHash: "x", EmailVerified: &verified}
	require.NoError(t, e.repo.Create(context.Background(), e.user))

	e.mw = &Session{
		Validator: &session.Validator{Signer: signer, Users: e.repo, Interval: 5 * time.Minute, Now: clock},
		Cookies:   session.DefaultCookies(false),
	}
	return e
}

func (e *env) token(t *testing.T) string {
	t.Helper()
	tok, _, err := e.signer.Issue(e.user)
	require.NoError(t, err)
	return tok
}

func serve(h echo.HandlerFunc, path, cookie string) (*httptest.ResponseRecorder, echo.Context) {
	ec := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	c := ec.NewContext(req, rec)
	if err := h(c); err != nil {
		ec.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestRequireSession(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec, _ := serve(e.mw.RequireSession(ok), "/api/v1/auth/profile", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec, c := serve(e.mw.RequireSession(ok), "/api/v1/auth/profile", e.token(t))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	id, found := UserID(c)
	require.True(t, found)
	assert.Equal(t, e.user.ID, id)
	assert.Equal(t, "mw@ex.com", Claims(c).Email)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRequireSession_RenewsAndRevokes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	tok := e.token(t)

	e.now = e.now.Add(10 * time.Minute)
	rec, _ := serve(e.mw.RequireSession(ok), "/x", tok)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, tok, cookies[0].Value)

	_, err := e.repo.Update(context.Background(), e.user.ID, map[string]any{"session_version": 1})
	require.NoError(t, err)
	e.now = e.now.Add(10 * time.Minute)

	rec, _ = serve(e.mw.RequireSession(ok), "/x", tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestGatekeeper_Redirects(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rec, _ := serve(e.mw.Gatekeeper(ok), "/dashboard/settings?tab=2", "garbage")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fdashboard%2Fsettings%3Ftab%3D2", rec.Header().Get(echo.HeaderLocation))

	rec, _ = serve(e.mw.Gatekeeper(ok), "/dashboard", e.token(t))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRF(t *testing.T) {
	t.Parallel()

	mw := CSRF(CSRFConfig{AllowedOrigins: []string{"http://localhost:3000"}})
	cases := []struct {
		name   string
		method string
		origin string
		want   int
	}{
		{"safe method", http.MethodGet, "https://evil.test", http.StatusNoContent},
		{"no origin", http.MethodPost, "", http.StatusNoContent},
		{"same origin", http.MethodPost, "http://example.com", http.StatusNoContent},
		{"allowed origin", http.MethodPost, "http://localhost:3000", http.StatusNoContent},
		{"foreign origin", http.MethodPost, "https://evil.test", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/auth/login", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			require.NoError(t, mw(ok)(echo.New().NewContext(req, rec)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
