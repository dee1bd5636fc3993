package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Middleware guards routes with a single static bearer token. Browsers cannot
// set headers on websocket upgrades, so the token may also arrive as the
// access_token query parameter. An empty configured token rejects every
// request.
type Middleware struct {
	token string
}

func NewMiddleware(token string) Middleware {
	return Middleware{token: token}
}

func (m Middleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := tokenFrom(r)
		if !ok || presented == "" {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		if m.token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(m.token)) != 1 {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFrom(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			return "", false
		}
		return strings.TrimSpace(strings.TrimPrefix(authz, prefix)), true
	}
	if q := r.URL.Query().Get("access_token"); q != "" {
		return q, true
	}
	return "", false
}
