// Package google implementa el canje authorization-code → perfil contra Google.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	ErrExchange       = errors.New("google: code exchange failed")
	ErrUserInfo       = errors.New("google: userinfo request failed")
	ErrEmailNotShared = errors.New("google: account has no verified email")
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Overrides para tests; vacíos = endpoints de Google.
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
}

// Provider implementa auth.IdentityProvider.
type Provider struct {
	conf        *oauth2.Config
	userInfoURL string
}

func New(cfg Config) *Provider {
	ep := googleoauth.Endpoint
	if cfg.Endpoint != nil {
		ep = *cfg.Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	ui := cfg.UserInfoURL
	if ui == "" {
		ui = defaultUserInfoURL
	}
	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     ep,
		},
		userInfoURL: ui,
	}
}

// AuthCodeURL arma la URL de consentimiento con el state dado.
func (p *Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange canjea el code y trae el perfil del usuario.
func (p *Provider) Exchange(ctx context.Context, code string) (*repository.ExternalProfile, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUserInfo, resp.StatusCode, body)
	}

	var ui userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ui); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUserInfo, err)
	}
	if ui.Email == "" || (ui.VerifiedEmail != nil && !*ui.VerifiedEmail) {
		return nil, ErrEmailNotShared
	}
	return &repository.ExternalProfile{
		Email:      ui.Email,
		Name:       ui.Name,
		ExternalID: ui.ID,
		Picture:    ui.Picture,
	}, nil
}
