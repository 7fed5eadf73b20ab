package middlewares

import "context"

type ctxKey string

const (
	ctxIdentityKey  ctxKey = "identity"
	ctxRequestIDKey ctxKey = "request_id"
)

// Identity es quién hace el request según el filtro de autenticación activo.
// Role es el primer rol; Roles conserva la lista completa (modo trusted-header).
type Identity struct {
	Subject string   `json:"sub"`
	Role    string   `json:"role"`
	Roles   []string `json:"roles,omitempty"`
}

// WithIdentity inyecta la identidad en el contexto.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// GetIdentity retorna la identidad adjunta por el filtro, si hay.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(Identity)
	return id, ok
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}
