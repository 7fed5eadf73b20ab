package auth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	mw "github.com/dropDatabas3/civicauth/internal/http/middlewares"
)

// MeController handles GET /api/v1/auth/me.
type MeController struct{}

func NewMeController() *MeController {
	return &MeController{}
}

// Me devuelve la identidad que adjuntó el filtro de autenticación.
func (c *MeController) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, id)
}
