package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	tokenKey
)

// Middleware rejects requests without a valid bearer token and stores
// the claims plus the raw token in the request context. The raw token
// is kept so service clients can forward the caller's identity on
// cross-service calls.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, r, "missing authorization header")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(w, r, "authorization header must be a bearer token")
			return
		}

		claims, err := m.Parse(raw)
		if err != nil {
			unauthorized(w, r, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]any{"detail": msg})
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token for forwarding.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
