package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/civicauth/internal/audit"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
)

// KeysController maneja /admin/keys.
type KeysController struct {
	keys  KeyAdmin
	tasks TaskRunner
}

func NewKeysController(keys KeyAdmin, tasks TaskRunner) *KeysController {
	return &KeysController{keys: keys, tasks: tasks}
}

type KeysResponse struct {
	Current       string        `json:"current"`
	ThresholdDays int           `json:"threshold_days"`
	Keys          []jwt.KeyInfo `json:"keys"`
}

type RotateResponse struct {
	KeyID   string `json:"kid"`
	Current string `json:"current"`
}

type ChangedResponse struct {
	OlderThan *time.Time `json:"older_than,omitempty"`
	KeyIDs    []string   `json:"kids"`
}

// List handles GET /admin/keys.
func (c *KeysController) List(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, KeysResponse{
		Current:       c.keys.CurrentSigningKeyID(),
		ThresholdDays: c.tasks.ThresholdDays(),
		Keys:          c.keys.Keys(),
	})
}

// Rotate handles POST /admin/keys/rotate: genera una clave nueva que pasa a ser la actual.
func (c *KeysController) Rotate(w http.ResponseWriter, r *http.Request) {
	kid, err := c.keys.GenerateKey()
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}
	audit.Log(r.Context(), audit.EventKeyRotated, logger.KeyID(kid))
	helpers.WriteJSON(w, http.StatusCreated, RotateResponse{KeyID: kid, Current: c.keys.CurrentSigningKeyID()})
}

// Deprecate handles POST /admin/keys/deprecate[?olderThan=RFC3339[&force=true]].
// Sin parámetro usa el umbral calculado del refresh TTL. Un olderThan posterior
// al umbral invalidaría refresh tokens todavía vigentes y se rechaza salvo force=true.
func (c *KeysController) Deprecate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cutoff := c.tasks.DeprecationCutoff()
	force := false
	if raw := strings.TrimSpace(q.Get("force")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("force must be a boolean"))
			return
		}
		force = v
	}
	if raw := strings.TrimSpace(q.Get("olderThan")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("olderThan must be RFC3339"))
			return
		}
		if t.After(cutoff) && !force {
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail(
				"olderThan is newer than the deprecation threshold ("+cutoff.UTC().Format(time.RFC3339)+"); pass force=true to override"))
			return
		}
		cutoff = t
	}
	changed := c.keys.Deprecate(cutoff)
	audit.Log(r.Context(), audit.EventKeysDeprecated,
		logger.Time("older_than", cutoff), logger.Bool("force", force), logger.KeyIDs(changed))
	helpers.WriteJSON(w, http.StatusOK, ChangedResponse{OlderThan: &cutoff, KeyIDs: nonNil(changed)})
}

// Purge handles POST /admin/keys/purge.
func (c *KeysController) Purge(w http.ResponseWriter, r *http.Request) {
	removed := c.keys.Purge()
	audit.Log(r.Context(), audit.EventKeysPurged, logger.KeyIDs(removed))
	helpers.WriteJSON(w, http.StatusOK, ChangedResponse{KeyIDs: nonNil(removed)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
