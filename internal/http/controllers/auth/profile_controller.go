package auth

import (
	"net/http"

	svc "github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	mw "github.com/dropDatabas3/civicauth/internal/http/middlewares"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
)

// ProfileController handles GET/PUT /api/v1/profile para el sujeto autenticado.
type ProfileController struct {
	service *svc.Service
}

func NewProfileController(s *svc.Service) *ProfileController {
	return &ProfileController{service: s}
}

func (c *ProfileController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	p, err := c.service.GetProfile(r.Context(), id.Subject)
	if err != nil {
		httperrors.WriteError(w, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, p)
}

func (c *ProfileController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := mw.GetIdentity(ctx)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	var in repository.ProfileUpdate
	if err := helpers.ReadJSON(w, r, &in); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	p, err := c.service.UpdateProfile(ctx, id.Subject, in)
	if err != nil {
		httperrors.WriteError(w, mapError(err))
		return
	}
	logger.From(ctx).Debug("profile updated", logger.Layer("controller"), logger.Op("ProfileController.Update"))
	helpers.WriteJSON(w, http.StatusOK, p)
}
