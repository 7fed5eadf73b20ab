// Package http arma el router chi del servicio y el server con apagado ordenado.
package http

import (
	"net/http"
	"net/netip"

	adminctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/health"
	oidcctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/oidc"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	mw "github.com/dropDatabas3/civicauth/internal/http/middlewares"
	"github.com/dropDatabas3/civicauth/internal/rate"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps contiene todo lo que el router necesita ya construido.
type RouterDeps struct {
	Auth   *authctrl.Controllers
	Admin  *adminctrl.Controllers
	Health *healthctrl.Controller
	JWKS   *oidcctrl.JWKSController

	// AuthFilter es WithBearerAuth o WithTrustedHeaders según auth.mode.
	AuthFilter mw.Middleware

	LoginLimiter   rate.Limiter
	RefreshLimiter rate.Limiter

	AdminAPIKey string
	CORSOrigins []string
	// TrustedProxies: peers cuyo X-Forwarded-For se usa para la IP del cliente.
	TrustedProxies []netip.Prefix

	Metrics MetricsConfig
	// Gatherer para /metrics; nil = default.
	Gatherer prometheus.Gatherer
}

// NewRouter registra todas las rutas.
func NewRouter(d RouterDeps) (http.Handler, error) {
	m, err := newHTTPMetrics(d.Metrics)
	if err != nil {
		return nil, err
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	authFilter := d.AuthFilter
	if authFilter == nil {
		authFilter = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithRequestID(),
		mw.WithLogging(),
		m.instrument,
		mw.WithSecurityHeaders(),
	)
	if len(d.CORSOrigins) > 0 {
		r.Use(mw.WithCORS(d.CORSOrigins))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no permitido."))
	})

	// ─── Infra ───
	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/.well-known/jwks.json", d.JWKS.GetJWKS)
	r.Head("/.well-known/jwks.json", d.JWKS.GetJWKS)

	// ─── API pública ───
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authFilter)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(mw.WithRateLimit(d.LoginLimiter, mw.IPPathRateKey), mw.WithNoStore())
				r.Get("/google", d.Auth.OAuth.Redirect)
				r.Get("/login/oauth2/code/google", d.Auth.OAuth.Callback)
				r.Post("/google/token", d.Auth.OAuth.Token)
			})
			r.With(mw.WithRateLimit(d.RefreshLimiter, mw.IPPathRateKey), mw.WithNoStore()).
				Post("/refresh", d.Auth.Refresh.Refresh)
			r.With(mw.RequireIdentity()).Get("/me", d.Auth.Me.Me)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(mw.RequireIdentity())
			r.Get("/", d.Auth.Profile.Get)
			r.Put("/", d.Auth.Profile.Update)
		})
	})

	// ─── Admin ───
	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireAdminKey(d.AdminAPIKey), mw.WithNoStore())
		r.Get("/keys", d.Admin.Keys.List)
		r.Post("/keys/rotate", d.Admin.Keys.Rotate)
		r.Post("/keys/deprecate", d.Admin.Keys.Deprecate)
		r.Post("/keys/purge", d.Admin.Keys.Purge)
		r.Get("/tasks", d.Admin.Tasks.List)
		r.Post("/tasks/{name}/run", d.Admin.Tasks.Run)
	})

	return r, nil
}
