package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// CSRFConfig describes which origins may send state-changing requests.
type CSRFConfig struct {
	// AllowedOrigins are scheme://host values accepted besides the request's
	// own origin.
	AllowedOrigins []string
	SkipPaths      []string
}

// CSRF rejects unsafe requests whose Origin (or Referer) names a foreign
// site. Requests carrying neither header come from non-browser clients and
// pass; the session cookie is SameSite=Lax for the browser case.
func CSRF(cfg CSRFConfig) echo.MiddlewareFunc {
	skip := map[string]struct{}{}
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			if _, ok := skip[req.URL.Path]; ok {
				return next(c)
			}

			origin := req.Header.Get("Origin")
			if origin == "" {
				origin = req.Header.Get("Referer")
			}
			if origin == "" {
				return next(c)
			}

			u, err := url.Parse(origin)
			if err != nil || u.Host == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid origin"})
			}
			if strings.EqualFold(u.Scheme, schemeOf(req)) && strings.EqualFold(u.Host, req.Host) {
				return next(c)
			}
			if _, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
				return next(c)
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid origin"})
		}
	}
}

func schemeOf(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
