package httpx

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bookshelf/internal/apperr"
	"bookshelf/internal/platform/crypto"
)

// AuthMiddleware requires a valid bearer token and puts its subject in the
// request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				WriteError(w, r, apperr.Unauthorized("Authentication required"))
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if token == "" {
				WriteError(w, r, apperr.Unauthorized("Authentication required"))
				return
			}

			claims, err := crypto.ParseToken(secret, token)
			if err != nil {
				LoggerFrom(r.Context()).Debug("token rejected", zap.Error(err))
				WriteError(w, r, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := ContextWithUser(r.Context(), claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
