package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/config"
	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (stubProvider) Exchange(_ context.Context, code string) (*repository.ExternalProfile, error) {
	return &repository.ExternalProfile{Email: code + "@civic.test", Name: "Ada", ExternalID: "g-" + code}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.JWT.KeyBits = 1024
	cfg.Admin.APIKey = "admin-secret"
	cfg.Rate.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *httptest.Server) {
	t.Helper()
	a, err := New(context.Background(), cfg,
		WithRegistry(prometheus.NewRegistry()),
		WithIdentityProvider(stubProvider{}),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return a, srv
}

func do(t *testing.T, method, url, body string, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(res.Body)
	return res, []byte(buf.String())
}

func TestApp_LoginRefreshMe(t *testing.T) {
	a, srv := newTestApp(t, testConfig(t))

	res, body := do(t, http.MethodPost, srv.URL+"/api/v1/auth/google/token", `{"code":"ada"}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	var tok auth.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	require.Equal(t, "ada@civic.test", tok.Email)
	require.Equal(t, repository.RoleUser, tok.Role)

	got, err := a.Verifier.Verify(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, a.Keys.CurrentSigningKeyID(), got.KeyID)

	res, body = do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", map[string]string{"Authorization": "Bearer " + tok.AccessToken})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	require.Contains(t, string(body), `"sub":"ada@civic.test"`)

	// token inválido: el filtro no corta, /me responde 401
	res, _ = do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body = do(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", `{"refresh_token":"`+tok.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
}

func TestApp_RotationKeepsOldTokensAndJWKS(t *testing.T) {
	a, srv := newTestApp(t, testConfig(t))
	old := a.Keys.CurrentSigningKeyID()

	tok, _, err := a.Issuer.IssueAccess("ada@civic.test", repository.RoleUser)
	require.NoError(t, err)

	admin := map[string]string{"X-Admin-API-Key": "admin-secret"}
	res, body := do(t, http.MethodPost, srv.URL+"/admin/keys/rotate", "", admin)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	require.NotEqual(t, old, a.Keys.CurrentSigningKeyID())

	res, body = do(t, http.MethodGet, srv.URL+"/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var doc jwt.JWKS
	require.NoError(t, json.Unmarshal(body, &doc))
	require.Len(t, doc.Keys, 2)

	_, err = a.Verifier.Verify(tok)
	require.NoError(t, err)

	res, _ = do(t, http.MethodPost, srv.URL+"/admin/keys/rotate", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestApp_TrustedHeaderMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Mode = "trusted_header"
	_, srv := newTestApp(t, cfg)

	res, body := do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", map[string]string{
		"X-User-Id":    "gateway-user",
		"X-User-Roles": "ADMIN,USER",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	require.Contains(t, string(body), `"role":"ADMIN"`)

	res, _ = do(t, http.MethodGet, srv.URL+"/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestApp_SnapshotSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keys.SnapshotPath = filepath.Join(t.TempDir(), "keys.snap")
	cfg.Keys.SnapshotSecret = "0123456789abcdef0123"

	a1, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()), WithIdentityProvider(stubProvider{}))
	require.NoError(t, err)
	kid := a1.Keys.CurrentSigningKeyID()
	tok, _, err := a1.Issuer.IssueAccess("ada@civic.test", repository.RoleUser)
	require.NoError(t, err)
	a1.Close()

	a2, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()), WithIdentityProvider(stubProvider{}))
	require.NoError(t, err)
	defer a2.Close()
	require.Equal(t, kid, a2.Keys.CurrentSigningKeyID())
	_, err = a2.Verifier.Verify(tok)
	require.NoError(t, err)
}
