package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/stretchr/testify/require"
)

// Requiere una base real: PG_TEST_DSN=postgres://... go test ./internal/store/pg
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, dsn, PoolConfig{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE users CASCADE`)
	require.NoError(t, err)
	return s
}

func TestStore_FindOrCreateAndProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, created, err := s.FindOrCreate(ctx, repository.ExternalProfile{Email: "Ada@civic.test", Name: "Ada", ExternalID: "g-1", Picture: "https://img/a.png"}, repository.ProviderGoogle)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "ada@civic.test", u.Email)
	require.Equal(t, repository.RoleUser, u.Role)

	again, created, err := s.FindOrCreate(ctx, repository.ExternalProfile{Email: "ada@civic.test", Name: "Ada L."}, repository.ProviderGoogle)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, u.ID, again.ID)
	require.Equal(t, "Ada L.", again.Name)

	p, err := s.GetProfile(ctx, "ada@civic.test")
	require.NoError(t, err)
	require.Equal(t, "https://img/a.png", p.AvatarURL)

	p, err = s.UpdateProfile(ctx, "ada@civic.test", repository.ProfileUpdate{Bio: "math", Location: "London"})
	require.NoError(t, err)
	require.Equal(t, "math", p.Bio)
	require.Empty(t, p.AvatarURL)

	_, err = s.GetByEmail(ctx, "nobody@civic.test")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.UpdateProfile(ctx, "nobody@civic.test", repository.ProfileUpdate{})
	require.ErrorIs(t, err, repository.ErrNotFound)
}
