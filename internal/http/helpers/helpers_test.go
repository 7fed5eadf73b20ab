package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	type body struct {
		Code string `json:"code"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	var b body
	require.NoError(t, ReadJSON(httptest.NewRecorder(), req, &b))
	require.Equal(t, "abc", b.Code)

	cases := map[string]struct {
		ct, in string
		code   string
	}{
		"empty":         {"application/json", "", "MISSING_FIELDS"},
		"broken":        {"application/json", `{"code":`, "INVALID_JSON"},
		"unknown field": {"application/json", `{"nope":1}`, "INVALID_JSON"},
		"form body":     {"application/x-www-form-urlencoded", "code=abc", "INVALID_JSON"},
		"too large":     {"application/json", `{"code":"` + strings.Repeat("a", DefaultMaxBody) + `"}`, "BODY_TOO_LARGE"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.in))
			req.Header.Set("Content-Type", tc.ct)
			err := ReadJSON(httptest.NewRecorder(), req, &body{})
			require.Error(t, err)
			require.Equal(t, tc.code, httperrors.FromError(err).Code)
		})
	}
}

func TestETag(t *testing.T) {
	tag := FromBytes([]byte(`{"keys":[]}`))
	require.True(t, strings.HasPrefix(tag, `W/"`))
	require.Equal(t, tag, FromBytes([]byte(`{"keys":[]}`)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.False(t, NotModified(req, tag))
	req.Header.Set("If-None-Match", `"other", `+tag)
	require.True(t, NotModified(req, tag))
}

func TestCookies(t *testing.T) {
	ck := BuildCookie("oauth_state", "xyz", "/api/v1/auth", "strict", true, 0)
	require.True(t, ck.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	require.Zero(t, ck.MaxAge)

	del := BuildDeletionCookie("oauth_state", "/api/v1/auth", "", false)
	require.Equal(t, -1, del.MaxAge)
	require.Equal(t, http.SameSiteLaxMode, del.SameSite)
}
