package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/pkg/authclient"
)

func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(authclient.CookieName)
		if err != nil || ck.Value == "revoked" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		role := "user"
		if ck.Value == "admin" {
			role = "admin"
		}
		http.SetCookie(w, &http.Cookie{Name: authclient.CookieName, Value: ck.Value + "-renewed", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u-` + ck.Value + `","role":"` + role + `"},"expires":"2030-01-01T00:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, mw echo.MiddlewareFunc, cookie string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: authclient.CookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	m := NewAutoRefreshMiddleware(authclient.NewClient(authServer(t).URL))

	rec, c := run(t, m.RequireAuth, "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-alice", c.Get("user_id"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "alice-renewed", cookies[0].Value)

	rec, _ = run(t, m.RequireAuth, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = run(t, m.RequireAuth, "revoked")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()
	m := NewAutoRefreshMiddleware(authclient.NewClient(authServer(t).URL))

	rec, _ := run(t, m.RequireAdmin, "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, c := run(t, m.RequireAdmin, "admin")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", c.Get("role"))
}

func TestAuthServiceDown(t *testing.T) {
	t.Parallel()
	srv := authServer(t)
	m := NewAutoRefreshMiddleware(authclient.NewClient(srv.URL))
	srv.Close()

	rec, _ := run(t, m.RequireAuth, "alice")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
