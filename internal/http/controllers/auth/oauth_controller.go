package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/civicauth/internal/auth"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/google/uuid"
)

const stateCookie = "civicauth_oauth_state"

// OAuthController maneja el flujo authorization-code con el proveedor externo.
type OAuthController struct {
	service *svc.Service
	cookies CookieConfig
}

func NewOAuthController(s *svc.Service, cookies CookieConfig) *OAuthController {
	return &OAuthController{service: s, cookies: cookies}
}

// Redirect handles GET /api/v1/auth/google.
func (c *OAuthController) Redirect(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, helpers.BuildCookie(stateCookie, state, c.cookies.Path, c.cookies.SameSite, c.cookies.Secure, c.cookies.TTL))
	http.Redirect(w, r, c.service.Provider.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /api/v1/auth/login/oauth2/code/google.
func (c *OAuthController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("OAuthController.Callback"))
	q := r.URL.Query()

	http.SetCookie(w, helpers.BuildDeletionCookie(stateCookie, c.cookies.Path, c.cookies.SameSite, c.cookies.Secure))

	if e := q.Get("error"); e != "" {
		log.Info("provider returned error", logger.String("provider_error", e))
		httperrors.WriteError(w, httperrors.ErrProviderRejected.WithDetail(e))
		return
	}
	ck, err := r.Cookie(stateCookie)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(state)) != 1 {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("state mismatch"))
		return
	}

	resp, err := c.service.SignInWithProvider(ctx, strings.TrimSpace(q.Get("code")))
	if err != nil {
		httperrors.WriteError(w, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

type codeRequest struct {
	Code string `json:"code"`
}

// Token handles POST /api/v1/auth/google/token: canje del code para clientes SPA
// que hicieron el redirect por su cuenta.
func (c *OAuthController) Token(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	resp, err := c.service.SignInWithProvider(r.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		httperrors.WriteError(w, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
