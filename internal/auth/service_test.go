package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const testIss = "https://auth.civic.test"

type stubProvider struct {
	profiles map[string]repository.ExternalProfile
}

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://idp.test/auth?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*repository.ExternalProfile, error) {
	prof, ok := p.profiles[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	return &prof, nil
}

func newTestService(t *testing.T) (*Service, *memory.Directory, *jwt.KeyStore) {
	t.Helper()
	ks := jwt.NewKeyStore(jwt.WithKeyBits(1024))
	_, err := ks.EnsureCurrent()
	require.NoError(t, err)
	dir := memory.New()
	return &Service{
		Provider: &stubProvider{profiles: map[string]repository.ExternalProfile{
			"code-ada": {Email: "ada@civic.test", Name: "Ada", ExternalID: "g-1", Picture: "https://img/ada.png"},
		}},
		Users:    dir,
		Profiles: dir,
		Issuer:   jwt.NewIssuer(testIss, ks, 24*time.Hour, 7*24*time.Hour),
		Verifier: jwt.NewVerifier(testIss, ks, false),
	}, dir, ks
}

func TestSignInWithProvider(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.SignInWithProvider(context.Background(), "code-ada")
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int64(86400), resp.ExpiresIn)
	require.Equal(t, "ada@civic.test", resp.Email)
	require.Equal(t, repository.RoleUser, resp.Role)

	access, err := svc.Verifier.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "USER", access.Roles)

	refresh, err := svc.Verifier.Verify(resp.RefreshToken)
	require.NoError(t, err)
	require.True(t, refresh.IsRefresh())

	_, err = svc.SignInWithProvider(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCode)
	_, err = svc.SignInWithProvider(context.Background(), "stolen")
	require.Error(t, err)
}

func TestRefresh(t *testing.T) {
	svc, dir, ks := newTestService(t)
	ctx := context.Background()
	first, err := svc.SignInWithProvider(ctx, "code-ada")
	require.NoError(t, err)

	// el rol vigente se toma del directorio, no del token viejo
	require.NoError(t, dir.SetRole("ada@civic.test", "ADMIN"))
	_, err = ks.GenerateKey()
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "ADMIN", next.Role)
	v, err := svc.Verifier.Verify(next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, ks.CurrentSigningKeyID(), v.KeyID)

	_, err = svc.Refresh(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrNotRefreshToken)

	_, err = svc.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, jwt.ErrMalformed)

	// refresh de un usuario que ya no existe
	orphan, _, err := svc.Issuer.IssueRefresh("ghost@civic.test")
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, orphan)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifyResult(t *testing.T) {
	require.Equal(t, "ok", VerifyResult(nil))
	require.Equal(t, "expired", VerifyResult(jwt.ErrExpired))
	require.Equal(t, "issuer_mismatch", VerifyResult(jwt.ErrIssuerMismatch))
	require.Equal(t, "malformed", VerifyResult(jwt.ErrMalformed))
	require.Equal(t, "key_not_found", VerifyResult(jwt.ErrKeyNotFound))
	require.Equal(t, "invalid_signature", VerifyResult(jwt.ErrSignatureInvalid))
}

func TestRefresh_RejectsTokenWithEmptyRolesClaim(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.SignInWithProvider(ctx, "code-ada")
	require.NoError(t, err)

	tok, err := svc.Issuer.Sign("ada@civic.test", map[string]any{jwt.ClaimRoles: ""}, time.Hour)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, tok)
	require.ErrorIs(t, err, ErrNotRefreshToken)
}
