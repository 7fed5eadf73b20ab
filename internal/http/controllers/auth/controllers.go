// Package auth contiene los controllers de login, refresh, me y perfil.
package auth

import (
	"time"

	svc "github.com/dropDatabas3/civicauth/internal/auth"
)

// CookieConfig configura la cookie de state del flujo OAuth2.
type CookieConfig struct {
	Path     string
	SameSite string
	Secure   bool
	TTL      time.Duration
}

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	OAuth   *OAuthController
	Refresh *RefreshController
	Me      *MeController
	Profile *ProfileController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s *svc.Service, cookies CookieConfig) *Controllers {
	return &Controllers{
		OAuth:   NewOAuthController(s, cookies),
		Refresh: NewRefreshController(s),
		Me:      NewMeController(),
		Profile: NewProfileController(s),
	}
}
