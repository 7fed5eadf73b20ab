package jwt

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildJWKS_OnlyActiveKeys(t *testing.T) {
	ks := newTestStore(t)
	old, err := ks.GenerateKey()
	require.NoError(t, err)
	cur, err := ks.GenerateKey()
	require.NoError(t, err)

	doc := BuildJWKS(ks)
	require.Len(t, doc.Keys, 2)

	require.Equal(t, []string{old}, ks.Deprecate(time.Now().Add(time.Minute)))
	doc = BuildJWKS(ks)
	require.Len(t, doc.Keys, 1)

	k := doc.Keys[0]
	require.Equal(t, cur, k.KID)
	require.Equal(t, "RSA", k.Kty)
	require.Equal(t, "sig", k.Use)
	require.Equal(t, "RS256", k.Alg)

	// n/e reconstruyen la pública
	pub, err := ks.PublicKey(cur)
	require.NoError(t, err)
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	require.NoError(t, err)
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	require.NoError(t, err)
	require.Zero(t, new(big.Int).SetBytes(nb).Cmp(pub.N))
	require.Equal(t, int64(pub.E), new(big.Int).SetBytes(eb).Int64())
	require.Equal(t, "AQAB", k.E)
}

func TestJWKSJSON_Shape(t *testing.T) {
	ks := newTestStore(t)
	_, err := ks.GenerateKey()
	require.NoError(t, err)

	b, err := JWKSJSON(ks)
	require.NoError(t, err)

	var raw map[string][]map[string]string
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Len(t, raw["keys"], 1)
	for _, field := range []string{"kid", "kty", "use", "alg", "n", "e"} {
		require.NotEmpty(t, raw["keys"][0][field], field)
	}
}

func TestJWKSCache_InvalidatedOnRotation(t *testing.T) {
	ks := newTestStore(t)
	_, err := ks.GenerateKey()
	require.NoError(t, err)
	cache := NewJWKSCache(ks, time.Hour)

	first, err := cache.Get()
	require.NoError(t, err)
	again, err := cache.Get()
	require.NoError(t, err)
	require.Equal(t, first, again)

	k2, err := ks.GenerateKey()
	require.NoError(t, err)

	after, err := cache.Get()
	require.NoError(t, err)
	require.NotEqual(t, first, after)
	require.Contains(t, string(after), k2)
}

func TestJWKSCache_BuildRacingRotationIsNotCached(t *testing.T) {
	ks := newTestStore(t)
	_, err := ks.GenerateKey()
	require.NoError(t, err)
	cache := NewJWKSCache(ks, time.Hour)

	started, release := make(chan struct{}), make(chan struct{})
	var builds atomic.Int32
	cache.build = func() ([]byte, error) {
		if builds.Add(1) == 1 {
			close(started)
			<-release
			return []byte("stale"), nil
		}
		return JWKSJSON(ks)
	}

	done := make(chan []byte)
	go func() {
		b, _ := cache.Get()
		done <- b
	}()
	<-started
	k2, err := ks.GenerateKey()
	require.NoError(t, err)
	close(release)
	require.Equal(t, "stale", string(<-done))

	// el build viejo no quedó en cache: el siguiente Get ve la clave nueva
	fresh, err := cache.Get()
	require.NoError(t, err)
	require.Contains(t, string(fresh), k2)
	require.Equal(t, int32(2), builds.Load())
}
