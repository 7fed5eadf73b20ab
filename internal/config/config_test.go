package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "self", c.Auth.Mode)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, 24*time.Hour, Dur(c.JWT.AccessTTL))
	require.Equal(t, 7*24*time.Hour, Dur(c.JWT.RefreshTTL))
	require.Equal(t, 2048, c.JWT.KeyBits)
	require.False(t, c.JWT.StrictKID)
	require.Equal(t, "X-User-Id", c.Auth.UserHeader)
	require.Equal(t, "X-User-Roles", c.Auth.RolesHeader)
	require.Equal(t, time.UTC, c.Location())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	p := writeYAML(t, `
app:
  app_env: staging
jwt:
  issuer: https://auth.civic.test
  access_ttl: 15m
  strict_kid: true
rotation:
  enabled: true
  generate: "0 0 1 * * ?"
storage:
  driver: postgres
  dsn: postgres://civic@localhost/civic
`)
	t.Setenv("JWT_REFRESH_EXPIRATION_MS", "1728000000") // 20 días
	t.Setenv("AUTH_MODE", "TRUSTED_HEADER")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "staging", c.App.Env)
	require.Equal(t, "https://auth.civic.test", c.JWT.Issuer)
	require.Equal(t, 15*time.Minute, Dur(c.JWT.AccessTTL))
	require.Equal(t, 20*24*time.Hour, Dur(c.JWT.RefreshTTL))
	require.True(t, c.JWT.StrictKID)
	require.True(t, c.Rotation.Enabled)
	require.Equal(t, "0 0 1 * * ?", c.Rotation.GenerateSchedule)
	require.Equal(t, "trusted_header", c.Auth.Mode)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, c.Server.CORSAllowedOrigins)
}

func TestLoad_AccessAliasMs(t *testing.T) {
	t.Setenv("JWT_EXPIRATION_MS", "86400000")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, Dur(c.JWT.AccessTTL))
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"bad mode":          "auth:\n  mode: cookie\n",
		"bad driver":        "storage:\n  driver: mongo\n",
		"postgres no dsn":   "storage:\n  driver: postgres\n",
		"bad duration":      "jwt:\n  access_ttl: soon\n",
		"negative duration": "jwks:\n  cache_ttl: -1m\n",
		"short secret":      "keys:\n  snapshot_path: /tmp/keys.snap\n  snapshot_secret: short\n",
		"bad timezone":      "rotation:\n  timezone: Mars/Olympus\n",
		"small prod keys":   "app:\n  app_env: prod\njwt:\n  key_bits: 1024\n",
		"bad proxy":         "server:\n  trusted_proxies: [\"10.0.0.0/33\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
		})
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	t.Setenv("SERVER_TRUSTED_PROXIES", "10.1.2.3/8, 192.0.2.10,::1")
	c, err := Load("")
	require.NoError(t, err)

	got, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
		netip.MustParsePrefix("::1/128"),
	}, got)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
