package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	svc "github.com/dropDatabas3/civicauth/internal/auth"
	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	mw "github.com/dropDatabas3/civicauth/internal/http/middlewares"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/oauth/google"
	"github.com/dropDatabas3/civicauth/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const testIss = "https://auth.civic.test"

type stubProvider struct{}

func (stubProvider) AuthCodeURL(state string) string {
	return "https://idp.test/auth?state=" + url.QueryEscape(state)
}

func (stubProvider) Exchange(_ context.Context, code string) (*repository.ExternalProfile, error) {
	if code != "good" {
		return nil, fmt.Errorf("%w: invalid_grant", google.ErrExchange)
	}
	return &repository.ExternalProfile{Email: "ada@civic.test", Name: "Ada", ExternalID: "g-1"}, nil
}

func newTestControllers(t *testing.T) (*Controllers, *svc.Service) {
	t.Helper()
	ks := jwt.NewKeyStore(jwt.WithKeyBits(1024))
	_, err := ks.EnsureCurrent()
	require.NoError(t, err)
	dir := memory.New()
	s := &svc.Service{
		Provider: stubProvider{},
		Users:    dir,
		Profiles: dir,
		Issuer:   jwt.NewIssuer(testIss, ks, time.Hour, 24*time.Hour),
		Verifier: jwt.NewVerifier(testIss, ks, false),
	}
	return NewControllers(s, CookieConfig{Path: "/api/v1/auth", TTL: 10 * time.Minute}), s
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestOAuth_RedirectAndCallback(t *testing.T) {
	c, _ := newTestControllers(t)

	rec := httptest.NewRecorder()
	c.OAuth.Redirect(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	state := cookies[0].Value
	require.Contains(t, rec.Header().Get("Location"), "state="+state)

	// state correcto
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login/oauth2/code/google?code=good&state="+state, nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	c.OAuth.Callback(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "Bearer", body["token_type"])
	require.Equal(t, "ada@civic.test", body["email"])
	require.Equal(t, "USER", body["role"])
	require.EqualValues(t, 3600, body["expires_in"])

	// state que no coincide
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/login/oauth2/code/google?code=good&state=forged", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	c.OAuth.Callback(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// error del proveedor
	rec = httptest.NewRecorder()
	c.OAuth.Callback(rec, httptest.NewRequest(http.MethodGet, "/cb?error=access_denied", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "PROVIDER_REJECTED", decode(t, rec)["code"])
}

func TestOAuth_Token(t *testing.T) {
	c, _ := newTestControllers(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/token", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		c.OAuth.Token(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, post(`{"code":"good"}`).Code)

	rec := post(`{"code":"bad"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "PROVIDER_REJECTED", decode(t, rec)["code"])

	rec = post(`{"code":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MISSING_FIELDS", decode(t, rec)["code"])
}

func TestRefresh(t *testing.T) {
	c, s := newTestControllers(t)
	login, err := s.SignInWithProvider(context.Background(), "good")
	require.NoError(t, err)

	// query param
	rec := httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?refreshToken="+login.RefreshToken, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decode(t, rec)["access_token"])

	// body JSON
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"`+login.RefreshToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c.Refresh.Refresh(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// un access token no sirve como refresh
	rec = httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?refreshToken="+login.AccessToken, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_INVALID", decode(t, rec)["code"])

	// expirado
	old := s.Issuer.Now
	s.Issuer.Now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, _, err := s.Issuer.IssueRefresh("ada@civic.test")
	require.NoError(t, err)
	s.Issuer.Now = old
	rec = httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?refreshToken="+expired, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_EXPIRED", decode(t, rec)["code"])

	// basura
	rec = httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?refreshToken=garbage", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// sin token
	rec = httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_UnknownUser(t *testing.T) {
	c, s := newTestControllers(t)
	tok, _, err := s.Issuer.IssueRefresh("ghost@civic.test")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?refreshToken="+tok, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_NoSigningKey(t *testing.T) {
	c, s := newTestControllers(t)
	tok, _, err := s.Issuer.IssueRefresh("ada@civic.test")
	require.NoError(t, err)
	_, err = s.SignInWithProvider(context.Background(), "good")
	require.NoError(t, err)

	// store nuevo y vacío para firmar: verificar anda, firmar no
	s.Issuer = jwt.NewIssuer(testIss, jwt.NewKeyStore(), time.Hour, time.Hour)

	rec := httptest.NewRecorder()
	c.Refresh.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh?refreshToken="+tok, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "NO_SIGNING_KEY", decode(t, rec)["code"])
}

func withIdentity(r *http.Request, sub string) *http.Request {
	return r.WithContext(mw.WithIdentity(r.Context(), mw.Identity{Subject: sub, Role: "USER", Roles: []string{"USER"}}))
}

func TestMe(t *testing.T) {
	c, _ := newTestControllers(t)

	rec := httptest.NewRecorder()
	c.Me.Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c.Me.Me(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), "ada@civic.test"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "ada@civic.test", body["sub"])
	require.Equal(t, "USER", body["role"])
}

func TestProfile(t *testing.T) {
	c, s := newTestControllers(t)
	_, err := s.SignInWithProvider(context.Background(), "good")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Profile.Get(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), "ada@civic.test"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ada@civic.test", decode(t, rec)["email"])

	req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader(`{"bio":"math","location":"London"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c.Profile.Update(rec, withIdentity(req, "ada@civic.test"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "math", body["bio"])
	require.Equal(t, "London", body["location"])

	rec = httptest.NewRecorder()
	c.Profile.Get(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), "ghost@civic.test"))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	c.Profile.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
