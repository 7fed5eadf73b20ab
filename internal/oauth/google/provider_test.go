package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newFakeGoogle(t *testing.T, userinfo map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "google-at", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *Provider {
	return New(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/cb",
		Endpoint: &oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: srv.URL + "/userinfo",
	})
}

func TestExchange(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"id": "g-42", "email": "ada@civic.test", "verified_email": true, "name": "Ada", "picture": "https://img/ada.png"})
	p := newTestProvider(srv)

	prof, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "ada@civic.test", prof.Email)
	require.Equal(t, "g-42", prof.ExternalID)
	require.Equal(t, "Ada", prof.Name)
	require.Equal(t, "https://img/ada.png", prof.Picture)

	_, err = p.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, ErrExchange)
}

func TestExchange_UnverifiedEmail(t *testing.T) {
	srv := newFakeGoogle(t, map[string]any{"id": "g-1", "email": "x@civic.test", "verified_email": false})
	_, err := newTestProvider(srv).Exchange(context.Background(), "good-code")
	require.ErrorIs(t, err, ErrEmailNotShared)
}

func TestAuthCodeURL(t *testing.T) {
	srv := newFakeGoogle(t, nil)
	u, err := url.Parse(newTestProvider(srv).AuthCodeURL("st4te"))
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "cid", q.Get("client_id"))
	require.Equal(t, "st4te", q.Get("state"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
	require.Equal(t, "openid email profile", q.Get("scope"))
}
