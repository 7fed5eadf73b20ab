package jwt

import "errors"

// Resultados esperados de la verificación. Se comparan con errors.Is;
// ninguno de estos representa una falla del servidor.
var (
	ErrMalformed        = errors.New("token_malformed")
	ErrSignatureInvalid = errors.New("token_signature_invalid")
	ErrIssuerMismatch   = errors.New("token_issuer_mismatch")
	ErrExpired          = errors.New("token_expired")
	ErrKeyNotFound      = errors.New("signing_key_not_found")
)

// ErrNoCurrentKey indica un store vacío. Es una violación del bootstrap:
// firmar debe fallar antes que emitir un token inverificable.
var ErrNoCurrentKey = errors.New("no_current_signing_key")

// ErrMissingRole: un access token sin rol sería indistinguible de un refresh token.
var ErrMissingRole = errors.New("access_token_requires_role")
