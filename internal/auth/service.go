// Package auth orquesta login con proveedor externo, refresh y perfil sobre el
// issuer/verifier de tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/metrics"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/dropDatabas3/civicauth/internal/util"
)

const TokenTypeBearer = "Bearer"

var (
	// ErrNotRefreshToken: se presentó un access token (con rol) donde se esperaba un refresh.
	ErrNotRefreshToken = errors.New("auth: not a refresh token")
	ErrMissingCode     = errors.New("auth: missing authorization code")
)

// IdentityProvider canjea un grant externo por un perfil verificado.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*repository.ExternalProfile, error)
}

// TokenResponse es la respuesta de login y refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
}

type Service struct {
	Provider IdentityProvider
	Users    repository.UserRepository
	Profiles repository.ProfileRepository
	Issuer   *jwt.Issuer
	Verifier *jwt.Verifier
}

// SignInWithProvider: code → perfil externo → find-or-create local → tokens.
func (s *Service) SignInWithProvider(ctx context.Context, code string) (*TokenResponse, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("SignInWithProvider"))

	prof, err := s.Provider.Exchange(ctx, code)
	if err != nil {
		log.Warn("provider exchange failed", logger.Err(err))
		return nil, err
	}
	u, created, err := s.Users.FindOrCreate(ctx, *prof, repository.ProviderGoogle)
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	if created {
		log.Info("user registered", logger.Email(util.MaskEmail(u.Email)))
	}
	return s.issue(ctx, u)
}

// Refresh valida un refresh token y emite un par nuevo con el rol vigente del usuario.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	v, err := s.Verifier.Verify(refreshToken)
	if err != nil {
		metrics.TokenVerified(VerifyResult(err))
		return nil, err
	}
	metrics.TokenVerified(VerifyResult(nil))
	if !v.IsRefresh() {
		return nil, ErrNotRefreshToken
	}
	u, err := s.Users.GetByEmail(ctx, v.Subject)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

func (s *Service) issue(ctx context.Context, u *repository.User) (*TokenResponse, error) {
	access, _, err := s.Issuer.IssueAccess(u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	metrics.TokenIssued("access")
	refresh, _, err := s.Issuer.IssueRefresh(u.Email)
	if err != nil {
		return nil, err
	}
	metrics.TokenIssued("refresh")

	logger.From(ctx).Debug("tokens issued",
		logger.Layer("service"),
		logger.Email(util.MaskEmail(u.Email)),
		logger.KeyID(s.Issuer.Keys.CurrentSigningKeyID()),
	)
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.Issuer.AccessTTL / time.Second),
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
	}, nil
}

func (s *Service) GetProfile(ctx context.Context, email string) (*repository.Profile, error) {
	return s.Profiles.GetProfile(ctx, email)
}

func (s *Service) UpdateProfile(ctx context.Context, email string, in repository.ProfileUpdate) (*repository.Profile, error) {
	return s.Profiles.UpdateProfile(ctx, email, in)
}

// VerifyResult traduce un error de verificación a la etiqueta de métricas.
func VerifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, jwt.ErrExpired):
		return "expired"
	case errors.Is(err, jwt.ErrIssuerMismatch):
		return "issuer_mismatch"
	case errors.Is(err, jwt.ErrMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrKeyNotFound):
		return "key_not_found"
	default:
		return "invalid_signature"
	}
}
