package middlewares

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/metrics"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/dropDatabas3/civicauth/internal/validation"
)

const (
	DefaultUserHeader  = "X-User-Id"
	DefaultRolesHeader = "X-User-Roles"
)

// TokenVerifier es lo que el filtro self-verifying necesita del verifier.
type TokenVerifier interface {
	Verify(raw string) (*jwt.Verified, error)
}

// WithBearerAuth es el filtro self-verifying: si hay "Authorization: Bearer" y el
// token verifica, adjunta la identidad. Nunca rechaza: sin header o con token
// inválido el request sigue sin identidad y decide la ruta.
func WithBearerAuth(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(raw)
			metrics.TokenVerified(auth.VerifyResult(err))
			if err != nil {
				logger.From(r.Context()).Debug("bearer token rejected",
					logger.Layer("middleware"),
					logger.String("reason", auth.VerifyResult(err)),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			id := Identity{Subject: claims.Subject, Role: claims.Roles}
			if claims.Roles != "" {
				id.Roles = []string{claims.Roles}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	h = strings.TrimSpace(h)
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// WithTrustedHeaders es el filtro para despliegues detrás de un gateway que ya
// autenticó: toma sujeto y roles de headers, sin criptografía. Un header
// malformado deja el request sin identidad.
func WithTrustedHeaders(userHeader, rolesHeader string) Middleware {
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	if rolesHeader == "" {
		rolesHeader = DefaultRolesHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFromHeaders(r, userHeader, rolesHeader)
			if ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFromHeaders(r *http.Request, userHeader, rolesHeader string) (id Identity, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.From(r.Context()).Warn("trusted headers parse panic", logger.Any("panic", rec))
			id, ok = Identity{}, false
		}
	}()

	sub := strings.TrimSpace(r.Header.Get(userHeader))
	if sub == "" {
		return Identity{}, false
	}
	rawRoles := r.Header.Get(rolesHeader)
	if hasControlChars(sub) || hasControlChars(rawRoles) {
		logger.From(r.Context()).Debug("trusted headers rejected", logger.Layer("middleware"))
		return Identity{}, false
	}

	id = Identity{Subject: sub}
	for _, p := range strings.Split(rawRoles, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !validation.ValidRoleName(p) {
			logger.From(r.Context()).Debug("trusted role dropped", logger.Layer("middleware"), logger.Role(p))
			continue
		}
		id.Roles = append(id.Roles, p)
	}
	if len(id.Roles) > 0 {
		id.Role = id.Roles[0]
	}
	return id, true
}

func hasControlChars(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// RequireIdentity corta con 401 si ningún filtro adjuntó identidad.
func RequireIdentity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentity(r.Context()); !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="civicauth"`)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
