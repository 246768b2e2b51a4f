// Package middleware is the control API's HTTP middleware stack: a
// dual-header bearer token gate, CORS, request logging, and a download
// concurrency limiter.
package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIToken returns middleware enforcing a bearer-token gate: the token may
// arrive as X-Api-Token or as an "Authorization: Bearer <token>" header. An
// empty configured token leaves the gate open, a dev-mode bypass.
func APIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(extractToken(r)), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`)) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const bearerPrefix = "Bearer "

func extractToken(r *http.Request) string {
	if v := r.Header.Get("X-Api-Token"); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len(bearerPrefix) && auth[:len(bearerPrefix)] == bearerPrefix {
		return auth[len(bearerPrefix):]
	}
	return ""
}
