package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/notisync/notisync/internal/services"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth validates the bearer token and puts the token claims on the
// request context.
func RequireAuth(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := auth.ValidateToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFrom(r *http.Request) *services.TokenClaims {
	claims, _ := r.Context().Value(claimsKey).(*services.TokenClaims)
	return claims
}
