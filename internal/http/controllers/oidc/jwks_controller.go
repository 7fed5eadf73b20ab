// Package oidc sirve el documento de descubrimiento de claves públicas.
package oidc

import (
	"fmt"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
)

// JWKSSource entrega el documento JWKS ya serializado. jwt.JWKSCache lo implementa.
type JWKSSource interface {
	Get() ([]byte, error)
	TTL() time.Duration
}

// JWKSController handles GET/HEAD /.well-known/jwks.json.
type JWKSController struct {
	src JWKSSource
}

func NewJWKSController(src JWKSSource) *JWKSController {
	return &JWKSController{src: src}
}

func (c *JWKSController) GetJWKS(w http.ResponseWriter, r *http.Request) {
	body, err := c.src.Get()
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	etag := helpers.FromBytes(body)
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(c.src.TTL().Seconds())))
	h.Set("ETag", etag)

	if helpers.NotModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}
