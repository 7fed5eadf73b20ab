package jwt

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const jwksCacheKey = "jwks"

// JWKSCache guarda el JSON del JWKS por un TTL corto. Requests concurrentes con el
// cache frío comparten un único build (singleflight).
type JWKSCache struct {
	c     *gocache.Cache
	sf    singleflight.Group
	ttl   time.Duration
	build func() ([]byte, error)

	// gen sube en cada Invalidate; un build iniciado con otra generación no se cachea.
	gen   atomic.Uint64
	setMu sync.Mutex
}

// NewJWKSCache crea el cache y lo engancha a los cambios del store: cualquier
// rotación, deprecación o purga lo invalida.
func NewJWKSCache(ks *KeyStore, ttl time.Duration) *JWKSCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	jc := &JWKSCache{
		c:     gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		build: func() ([]byte, error) { return JWKSJSON(ks) },
	}
	ks.OnChange(jc.Invalidate)
	return jc
}

// TTL es el max-age sugerido para Cache-Control.
func (jc *JWKSCache) TTL() time.Duration { return jc.ttl }

// Get retorna el JWKS serializado, desde cache si está fresco.
func (jc *JWKSCache) Get() ([]byte, error) {
	if v, ok := jc.c.Get(jwksCacheKey); ok {
		return v.([]byte), nil
	}
	gen := jc.gen.Load()
	v, err, _ := jc.sf.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		b, err := jc.build()
		if err != nil {
			return nil, err
		}
		jc.setMu.Lock()
		if jc.gen.Load() == gen {
			jc.c.SetDefault(jwksCacheKey, b)
		}
		jc.setMu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate descarta el documento cacheado.
func (jc *JWKSCache) Invalidate() {
	jc.setMu.Lock()
	jc.gen.Add(1)
	jc.c.Delete(jwksCacheKey)
	jc.setMu.Unlock()
}
