package auth

import (
	"errors"

	svc "github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/oauth/google"
)

// mapError traduce errores de service/jwt/proveedor al envelope HTTP.
// Los errores de verificación nunca salen como 5xx.
func mapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrNoCurrentKey):
		return httperrors.ErrNoSigningKey.WithCause(err)
	case errors.Is(err, jwt.ErrExpired):
		return httperrors.ErrTokenExpired.WithCause(err)
	case errors.Is(err, jwt.ErrMalformed),
		errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrIssuerMismatch),
		errors.Is(err, jwt.ErrKeyNotFound),
		errors.Is(err, svc.ErrNotRefreshToken):
		return httperrors.ErrTokenInvalid.WithCause(err)
	case errors.Is(err, svc.ErrMissingCode):
		return httperrors.ErrMissingFields.WithDetail("code is required")
	case errors.Is(err, google.ErrExchange), errors.Is(err, google.ErrEmailNotShared):
		return httperrors.ErrProviderRejected.WithCause(err)
	case errors.Is(err, google.ErrUserInfo):
		return httperrors.ErrBadGateway.WithCause(err)
	case errors.Is(err, repository.ErrInvalidInput):
		return httperrors.ErrBadRequest.WithDetail(err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return httperrors.ErrNotFound.WithCause(err)
	}
	return err
}
