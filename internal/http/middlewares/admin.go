package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
)

const AdminKeyHeader = "X-Admin-API-Key"

// RequireAdminKey protege las rutas de administración con una API key estática.
// Sin key configurada las rutas quedan cerradas (403).
func RequireAdminKey(apiKey string) Middleware {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				errors.WriteError(w, errors.ErrForbidden.WithDetail("admin api disabled"))
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if got == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("missing "+AdminKeyHeader))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				logger.From(r.Context()).Warn("admin key mismatch", logger.ClientIP(clientIP(r)))
				errors.WriteError(w, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
