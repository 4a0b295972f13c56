package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists the origins, methods, and headers the service admits
// cross-origin. An empty AllowedOrigins disables CORS handling entirely.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS answers preflights and stamps CORS headers for allowed origins.
// Requests from unknown origins pass through unstamped; the browser enforces
// the denial.
func WithCORS(policy CORSPolicy) Middleware {
	origins := trimmed(policy.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	methods := strings.Join(trimmed(policy.AllowedMethods), ", ")
	headers := strings.Join(trimmed(policy.AllowedHeaders), ", ")
	maxAge := ""
	if policy.MaxAge > 0 {
		maxAge = strconv.Itoa(int(policy.MaxAge.Seconds()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow := policy.allowFor(origins, origin)
			if allow == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			if policy.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
			h.Add("Vary", "Origin")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowFor picks the Allow-Origin value for a request origin, or "" when the
// origin is not admitted. A "*" entry echoes the origin when credentials are
// allowed, since the wildcard is invalid alongside Allow-Credentials.
func (p CORSPolicy) allowFor(origins []string, origin string) string {
	for _, o := range origins {
		if o == "*" {
			if p.AllowCredentials {
				return origin
			}
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
