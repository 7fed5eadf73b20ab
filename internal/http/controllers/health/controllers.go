// Package health contiene liveness y readiness.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
)

// Pinger es una dependencia que readiness consulta (directorio, redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeySource dice si hay clave de firma.
type KeySource interface {
	CurrentSigningKeyID() string
}

type Controller struct {
	Keys    KeySource
	Checks  map[string]Pinger
	Version string
	Timeout time.Duration
}

type response struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	CurrentKey string            `json:"current_kid,omitempty"`
	Checks     map[string]string `json:"checks,omitempty"`
}

// Live handles GET /healthz.
func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, response{Status: "ok", Version: c.Version})
}

// Ready handles GET /readyz: 503 si no hay clave actual o falla alguna dependencia.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp := response{Status: "ok", Version: c.Version, Checks: map[string]string{}}
	status := http.StatusOK

	resp.CurrentKey = c.Keys.CurrentSigningKeyID()
	if resp.CurrentKey == "" {
		resp.Checks["signing_key"] = "missing"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["signing_key"] = "ok"
	}

	for name, p := range c.Checks {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			resp.Checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	if status != http.StatusOK {
		resp.Status = "unavailable"
	}
	helpers.WriteJSON(w, status, resp)
}
