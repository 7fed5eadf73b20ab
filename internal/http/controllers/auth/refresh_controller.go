package auth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
)

// RefreshController handles POST /api/v1/auth/refresh.
type RefreshController struct {
	service *svc.Service
}

func NewRefreshController(s *svc.Service) *RefreshController {
	return &RefreshController{service: s}
}

type refreshRequest struct {
	RefreshToken      string `json:"refresh_token"`
	RefreshTokenCamel string `json:"refreshToken"`
}

// Refresh acepta el token como query param refreshToken o en el body JSON.
func (c *RefreshController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RefreshController.Refresh"))

	token := strings.TrimSpace(r.URL.Query().Get("refreshToken"))
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := helpers.ReadJSON(w, r, &req); err != nil {
			httperrors.WriteError(w, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
		if token == "" {
			token = strings.TrimSpace(req.RefreshTokenCamel)
		}
	}
	if token == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("refresh token is required"))
		return
	}

	resp, err := c.service.Refresh(ctx, token)
	if err != nil {
		log.Debug("refresh rejected", logger.Err(err))
		if repository.IsNotFound(err) {
			// el usuario del token ya no existe
			httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithCause(err))
			return
		}
		httperrors.WriteError(w, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
