package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

const UnknownClient = "unknown"

// ClientIdentifier derives the bucket identity from proxy headers: the first
// X-Forwarded-For hop, then X-Real-IP, then CF-Connecting-IP. Requests with
// none of them share the "unknown" bucket.
func ClientIdentifier(r *http.Request) string {
	if r == nil {
		return UnknownClient
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return normalizeIP(first)
		}
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return normalizeIP(v)
		}
	}
	return UnknownClient
}

func normalizeIP(s string) string {
	if s == "::1" {
		return "127.0.0.1"
	}
	if ip := net.ParseIP(s); ip != nil && strings.Contains(s, ":") {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return s
}
