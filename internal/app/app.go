// Package app arma el servicio completo a partir de la configuración: claves,
// directorio de usuarios, proveedor, scheduler de rotación y router HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/config"
	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	httpserver "github.com/dropDatabas3/civicauth/internal/http"
	adminctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/health"
	oidcctrl "github.com/dropDatabas3/civicauth/internal/http/controllers/oidc"
	mw "github.com/dropDatabas3/civicauth/internal/http/middlewares"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/metrics"
	"github.com/dropDatabas3/civicauth/internal/oauth/google"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/dropDatabas3/civicauth/internal/rate"
	"github.com/dropDatabas3/civicauth/internal/rotation"
	"github.com/dropDatabas3/civicauth/internal/security/secretbox"
	"github.com/dropDatabas3/civicauth/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
)

const snapshotInfo = "civicauth/keys-snapshot"

// App es el servicio cableado.
type App struct {
	Config    *config.Config
	Keys      *jwt.KeyStore
	Issuer    *jwt.Issuer
	Verifier  *jwt.Verifier
	Scheduler *rotation.Scheduler
	Directory repository.Directory
	Handler   http.Handler

	closers []func()
}

// Option ajusta la construcción (tests).
type Option func(*options)

type options struct {
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	provider auth.IdentityProvider
}

// WithRegistry usa un registry propio en vez del default de Prometheus.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry, o.gatherer = reg, reg }
}

// WithIdentityProvider reemplaza el proveedor Google.
func WithIdentityProvider(p auth.IdentityProvider) Option {
	return func(o *options) { o.provider = p }
}

// New construye todo sin arrancar nada en background.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{registry: prometheus.DefaultRegisterer, gatherer: prometheus.DefaultGatherer}
	for _, fn := range opts {
		fn(&o)
	}
	log := logger.From(ctx).With(logger.Component("app"))

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ─── Claves ───
	a.Keys = jwt.NewKeyStore(jwt.WithKeyBits(cfg.JWT.KeyBits))
	if err := a.loadSnapshot(ctx); err != nil {
		return nil, err
	}
	kid, err := a.Keys.EnsureCurrent()
	if err != nil {
		return nil, fmt.Errorf("app: initial signing key: %w", err)
	}
	log.Info("signing key ready", logger.KeyID(kid), logger.Count(len(a.Keys.Keys())))

	if err := metrics.Register(o.registry, a.Keys); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	a.Issuer = jwt.NewIssuer(cfg.JWT.Issuer, a.Keys, config.Dur(cfg.JWT.AccessTTL), config.Dur(cfg.JWT.RefreshTTL))
	a.Verifier = jwt.NewVerifier(cfg.JWT.Issuer, a.Keys, cfg.JWT.StrictKID)
	jwks := jwt.NewJWKSCache(a.Keys, config.Dur(cfg.JWKS.CacheTTL))

	// ─── Directorio ───
	scfg := store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN}
	scfg.Postgres.MaxConns = cfg.Storage.Postgres.MaxConns
	scfg.Postgres.MinConns = cfg.Storage.Postgres.MinConns
	scfg.Postgres.ConnMaxLifetime = config.Dur(cfg.Storage.Postgres.ConnMaxLifetime)
	scfg.Postgres.AutoMigrate = cfg.Storage.Postgres.AutoMigrate
	stores, err := store.Open(ctx, scfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, stores.Close)
	a.Directory = stores.Directory

	// ─── Servicio ───
	provider := o.provider
	if provider == nil {
		provider = google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       cfg.Google.Scopes,
		})
	}
	svc := &auth.Service{
		Provider: provider,
		Users:    a.Directory,
		Profiles: a.Directory,
		Issuer:   a.Issuer,
		Verifier: a.Verifier,
	}

	a.Scheduler, err = rotation.New(rotation.Config{
		Enabled:           cfg.Rotation.Enabled,
		GenerateSchedule:  cfg.Rotation.GenerateSchedule,
		DeprecateSchedule: cfg.Rotation.DeprecateSchedule,
		PurgeSchedule:     cfg.Rotation.PurgeSchedule,
		StatusLogSchedule: cfg.Rotation.StatusLogSchedule,
		RefreshTTL:        config.Dur(cfg.JWT.RefreshTTL),
		Location:          cfg.Location(),
	}, a.Keys)
	if err != nil {
		return nil, err
	}

	// ─── HTTP ───
	checks := map[string]healthctrl.Pinger{"directory": a.Directory}
	loginLim, refreshLim, redisClient := a.buildLimiters()
	if redisClient != nil {
		checks["redis"] = redisPinger{redisClient}
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	var filter mw.Middleware
	switch cfg.Auth.Mode {
	case "trusted_header":
		filter = mw.WithTrustedHeaders(cfg.Auth.UserHeader, cfg.Auth.RolesHeader)
	default:
		filter = mw.WithBearerAuth(a.Verifier)
	}
	log.Info("authentication filter", logger.String("mode", cfg.Auth.Mode))

	a.Handler, err = httpserver.NewRouter(httpserver.RouterDeps{
		Auth: authctrl.NewControllers(svc, authctrl.CookieConfig{
			Path:     "/api/v1/auth",
			SameSite: cfg.Auth.StateCookie.SameSite,
			Secure:   cfg.Auth.StateCookie.Secure || cfg.IsProd(),
			TTL:      config.Dur(cfg.Auth.StateCookie.TTL),
		}),
		Admin:          adminctrl.NewControllers(a.Keys, a.Scheduler),
		Health:         &healthctrl.Controller{Keys: a.Keys, Checks: checks, Version: cfg.App.Version},
		JWKS:           oidcctrl.NewJWKSController(jwks),
		AuthFilter:     filter,
		LoginLimiter:   loginLim,
		RefreshLimiter: refreshLim,
		AdminAPIKey:    cfg.Admin.APIKey,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		TrustedProxies: proxies,
		Metrics:        httpserver.MetricsConfig{Registry: o.registry, GlobalPool: stores.Pool},
		Gatherer:       o.gatherer,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// loadSnapshot restaura las claves persistidas y engancha el guardado en cada cambio.
func (a *App) loadSnapshot(ctx context.Context) error {
	path := a.Config.Keys.SnapshotPath
	if path == "" {
		return nil
	}
	log := logger.From(ctx).With(logger.Component("keys"))
	box, err := secretbox.New([]byte(a.Config.Keys.SnapshotSecret), snapshotInfo)
	if err != nil {
		return fmt.Errorf("app: snapshot secret: %w", err)
	}

	switch err := a.Keys.LoadSnapshot(path, box); {
	case err == nil:
		log.Info("key snapshot loaded", logger.String("path", path), logger.Count(len(a.Keys.Keys())))
	case errors.Is(err, os.ErrNotExist):
		log.Info("no key snapshot yet", logger.String("path", path))
	default:
		return err
	}

	a.Keys.OnChange(func() {
		if err := a.Keys.SaveSnapshot(path, box); err != nil {
			logger.L().Error("key snapshot save failed", logger.Component("keys"), logger.Err(err))
		}
	})
	return nil
}

func (a *App) buildLimiters() (login, refresh rate.Limiter, client *rdb.Client) {
	rc := a.Config.Rate
	if !rc.Enabled {
		return nil, nil, nil
	}
	lw, rw := config.Dur(rc.Login.Window), config.Dur(rc.Refresh.Window)
	if rc.Redis.Addr == "" {
		return rate.NewMemoryLimiter("login:", rc.Login.Limit, lw),
			rate.NewMemoryLimiter("refresh:", rc.Refresh.Limit, rw), nil
	}
	client = rdb.NewClient(&rdb.Options{Addr: rc.Redis.Addr, Password: rc.Redis.Password, DB: rc.Redis.DB})
	a.closers = append(a.closers, func() { _ = client.Close() })
	return rate.NewRedisLimiter(client, rc.Redis.Prefix+"login:", rc.Login.Limit, lw),
		rate.NewRedisLimiter(client, rc.Redis.Prefix+"refresh:", rc.Refresh.Limit, rw), client
}

type redisPinger struct{ c *rdb.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// Run arranca el scheduler y sirve HTTP hasta que ctx se cancela.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), config.Dur(a.Config.Server.ShutdownTimeout))
		defer cancel()
		if err := a.Scheduler.Stop(stopCtx); err != nil {
			logger.L().Warn("rotation scheduler stop timed out", logger.Err(err))
		}
	}()

	return httpserver.Serve(ctx, httpserver.ServerConfig{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     config.Dur(a.Config.Server.ReadTimeout),
		WriteTimeout:    config.Dur(a.Config.Server.WriteTimeout),
		ShutdownTimeout: config.Dur(a.Config.Server.ShutdownTimeout),
	}, a.Handler)
}

// Close libera recursos en orden inverso.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
