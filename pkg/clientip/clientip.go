// Package clientip resolves the address of the client behind the edge
// proxies. Only the configured headers are trusted; the connection's remote
// address is the fallback.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders matches a Cloudflare fronted deployment behind one
// reverse proxy.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Config lists the forwarding headers to trust, highest priority first.
type Config struct {
	TrustedHeaders []string `env:"CLIENT_IP_HEADERS" envSeparator:"," envDefault:"CF-Connecting-IP,X-Forwarded-For,X-Real-IP"`
}

// GetIP returns the normalized client IP of r or "" when none is valid.
// For X-Forwarded-For the first valid entry wins.
func GetIP(r *http.Request, headers ...string) string {
	for _, h := range headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for candidate := range strings.SplitSeq(v, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

type contextKey struct{}

func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// Middleware stores the resolved client IP in the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	headers := cfg.TrustedHeaders
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), GetIP(r, headers...))))
		})
	}
}
