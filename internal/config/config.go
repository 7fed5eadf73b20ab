package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// TrustedProxies: CIDRs o IPs cuyo X-Forwarded-For se respeta. Vacío ⇒ se usa RemoteAddr.
		TrustedProxies  []string `yaml:"trusted_proxies"`
		ReadTimeout     string   `yaml:"read_timeout"`
		WriteTimeout    string   `yaml:"write_timeout"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		KeyBits    int    `yaml:"key_bits"`
		// StrictKID: kid desconocido ⇒ rechazo, sin fallback a la clave actual.
		StrictKID bool `yaml:"strict_kid"`
	} `yaml:"jwt"`

	Keys struct {
		// Vacío = claves solo en memoria (se pierden al reiniciar).
		SnapshotPath   string `yaml:"snapshot_path"`
		SnapshotSecret string `yaml:"snapshot_secret"`
	} `yaml:"keys"`

	Rotation struct {
		Enabled           bool   `yaml:"enabled"`
		GenerateSchedule  string `yaml:"generate"`
		DeprecateSchedule string `yaml:"deprecate"`
		PurgeSchedule     string `yaml:"purge"`
		StatusLogSchedule string `yaml:"status_log"`
		Timezone          string `yaml:"timezone"`
	} `yaml:"rotation"`

	Auth struct {
		// self | trusted_header
		Mode        string `yaml:"mode"`
		UserHeader  string `yaml:"user_header"`
		RolesHeader string `yaml:"roles_header"`
		StateCookie struct {
			SameSite string `yaml:"samesite"`
			Secure   bool   `yaml:"secure"`
			TTL      string `yaml:"ttl"`
		} `yaml:"state_cookie"`
	} `yaml:"auth"`

	Google struct {
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		RedirectURL  string   `yaml:"redirect_url"`
		Scopes       []string `yaml:"scopes"`
	} `yaml:"google"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
			AutoMigrate     bool   `yaml:"auto_migrate"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Login struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
		Refresh struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"refresh"`
	} `yaml:"rate"`

	JWKS struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"jwks"`

	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML de path (vacío = solo defaults + env), aplica defaults,
// overrides de entorno y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "civicauth"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "civicauth"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "24h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	if c.JWT.KeyBits == 0 {
		c.JWT.KeyBits = 2048
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "self"
	}
	if c.Auth.UserHeader == "" {
		c.Auth.UserHeader = "X-User-Id"
	}
	if c.Auth.RolesHeader == "" {
		c.Auth.RolesHeader = "X-User-Roles"
	}
	if c.Auth.StateCookie.SameSite == "" {
		c.Auth.StateCookie.SameSite = "Lax"
	}
	if c.Auth.StateCookie.TTL == "" {
		c.Auth.StateCookie.TTL = "10m"
	}
	if len(c.Google.Scopes) == 0 {
		c.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "civicauth:rl:"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.Refresh.Limit == 0 {
		c.Rate.Refresh.Limit = 30
	}
	if c.Rate.Refresh.Window == "" {
		c.Rate.Refresh.Window = "1m"
	}
	if c.JWKS.CacheTTL == "" {
		c.JWKS.CacheTTL = "5m"
	}
	if c.Rotation.Timezone == "" {
		c.Rotation.Timezone = "UTC"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvInt64(key string) (int64, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PORT"); ok {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	// alias en milisegundos
	if v, ok := getEnvInt64("JWT_EXPIRATION_MS"); ok {
		c.JWT.AccessTTL = (time.Duration(v) * time.Millisecond).String()
	}
	if v, ok := getEnvInt64("JWT_REFRESH_EXPIRATION_MS"); ok {
		c.JWT.RefreshTTL = (time.Duration(v) * time.Millisecond).String()
	}
	if v, ok := getEnvInt("JWT_KEY_BITS"); ok {
		c.JWT.KeyBits = v
	}
	if v, ok := getEnvBool("JWT_STRICT_KID"); ok {
		c.JWT.StrictKID = v
	}

	// KEYS
	if v, ok := getEnvStr("KEYS_SNAPSHOT_PATH"); ok {
		c.Keys.SnapshotPath = v
	}
	if v, ok := getEnvStr("KEYS_SNAPSHOT_SECRET"); ok {
		c.Keys.SnapshotSecret = v
	}

	// ROTATION
	if v, ok := getEnvBool("ROTATION_ENABLED"); ok {
		c.Rotation.Enabled = v
	}
	if v, ok := getEnvStr("ROTATION_GENERATE"); ok {
		c.Rotation.GenerateSchedule = v
	}
	if v, ok := getEnvStr("ROTATION_DEPRECATE"); ok {
		c.Rotation.DeprecateSchedule = v
	}
	if v, ok := getEnvStr("ROTATION_PURGE"); ok {
		c.Rotation.PurgeSchedule = v
	}
	if v, ok := getEnvStr("ROTATION_STATUS_LOG"); ok {
		c.Rotation.StatusLogSchedule = v
	}
	if v, ok := getEnvStr("ROTATION_TIMEZONE"); ok {
		c.Rotation.Timezone = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_MODE"); ok {
		c.Auth.Mode = strings.ToLower(v)
	}
	if v, ok := getEnvStr("AUTH_USER_HEADER"); ok {
		c.Auth.UserHeader = v
	}
	if v, ok := getEnvStr("AUTH_ROLES_HEADER"); ok {
		c.Auth.RolesHeader = v
	}
	if v, ok := getEnvBool("AUTH_STATE_COOKIE_SECURE"); ok {
		c.Auth.StateCookie.Secure = v
	}

	// GOOGLE
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GOOGLE_REDIRECT_URL"); ok {
		c.Google.RedirectURL = v
	}
	if v, ok := getEnvCSV("GOOGLE_SCOPES"); ok && len(v) > 0 {
		c.Google.Scopes = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}
	if v, ok := getEnvBool("POSTGRES_AUTO_MIGRATE"); ok {
		c.Storage.Postgres.AutoMigrate = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
	if v, ok := getEnvInt("RATE_REFRESH_LIMIT"); ok {
		c.Rate.Refresh.Limit = v
	}
	if v, ok := getEnvStr("RATE_REFRESH_WINDOW"); ok {
		c.Rate.Refresh.Window = v
	}

	// JWKS / ADMIN / LOG
	if v, ok := getEnvStr("JWKS_CACHE_TTL"); ok {
		c.JWKS.CacheTTL = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate chequea enums y que todas las duraciones parseen.
func (c *Config) Validate() error {
	var errs []error

	switch c.Auth.Mode {
	case "self", "trusted_header":
	default:
		errs = append(errs, fmt.Errorf("auth.mode: %q must be self or trusted_header", c.Auth.Mode))
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn: required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: %q must be memory or postgres", c.Storage.Driver))
	}
	if c.JWT.KeyBits < 2048 && strings.EqualFold(c.App.Env, "prod") {
		errs = append(errs, fmt.Errorf("jwt.key_bits: %d is too small for prod", c.JWT.KeyBits))
	}
	if c.Keys.SnapshotPath != "" && len(c.Keys.SnapshotSecret) < 16 {
		errs = append(errs, errors.New("keys.snapshot_secret: at least 16 bytes required with snapshot_path"))
	}
	if _, err := time.LoadLocation(c.Rotation.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("rotation.timezone: %w", err))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}

	durations := map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"jwt.access_ttl":                     c.JWT.AccessTTL,
		"jwt.refresh_ttl":                    c.JWT.RefreshTTL,
		"auth.state_cookie.ttl":              c.Auth.StateCookie.TTL,
		"rate.login.window":                  c.Rate.Login.Window,
		"rate.refresh.window":                c.Rate.Refresh.Window,
		"jwks.cache_ttl":                     c.JWKS.CacheTTL,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// TrustedProxyPrefixes parsea server.trusted_proxies; una IP suelta vale como /32 o /128.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, raw := range c.Server.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// Dur parsea una duración ya validada; "" o inválida ⇒ 0.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Location es la zona horaria de los triggers de rotación.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Rotation.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProd reporta si APP_ENV es prod.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}
