package jwt

import (
	"crypto/rsa"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// KeyStore es dueño de todo el material de firma.
//
// Lecturas (PublicKey, ActiveKeys, CurrentSigningKeyID) no toman locks: el mapa es
// un sync.Map de records inmutables y el kid actual vive en un atomic.Pointer.
// Las mutaciones (GenerateKey, Deprecate, Purge) se serializan entre sí con mu.
type KeyStore struct {
	keys    sync.Map // kid -> *KeyRecord
	current atomic.Pointer[KeyRecord]

	mu       sync.Mutex
	bits     int
	generate KeyGenerator
	now      func() time.Time

	hooksMu sync.RWMutex
	hooks   []func()

	// saveMu serializa SaveSnapshot completo (lectura + escritura): el último
	// archivo escrito siempre refleja el estado más nuevo.
	saveMu sync.Mutex
}

// KeyStoreOption ajusta un KeyStore en construcción.
type KeyStoreOption func(*KeyStore)

// WithKeyBits fija el tamaño de las claves RSA (mínimo 1024).
func WithKeyBits(bits int) KeyStoreOption {
	return func(ks *KeyStore) {
		if bits >= minKeyBits {
			ks.bits = bits
		}
	}
}

// WithKeyGenerator reemplaza el generador RSA.
func WithKeyGenerator(g KeyGenerator) KeyStoreOption {
	return func(ks *KeyStore) {
		if g != nil {
			ks.generate = g
		}
	}
}

// WithClock reemplaza el reloj usado para CreatedAt.
func WithClock(now func() time.Time) KeyStoreOption {
	return func(ks *KeyStore) {
		if now != nil {
			ks.now = now
		}
	}
}

// NewKeyStore crea un store vacío. Llamar EnsureCurrent (o LoadSnapshot) antes de firmar.
func NewKeyStore(opts ...KeyStoreOption) *KeyStore {
	ks := &KeyStore{
		bits:     DefaultKeyBits,
		generate: generateRSA,
		now:      time.Now,
	}
	for _, o := range opts {
		o(ks)
	}
	return ks
}

// OnChange registra un hook que corre después de cada mutación efectiva.
// Los hooks corren fuera del lock de escritura.
func (ks *KeyStore) OnChange(fn func()) {
	if fn == nil {
		return
	}
	ks.hooksMu.Lock()
	ks.hooks = append(ks.hooks, fn)
	ks.hooksMu.Unlock()
}

func (ks *KeyStore) notify() {
	ks.hooksMu.RLock()
	hooks := append([]func(){}, ks.hooks...)
	ks.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// GenerateKey crea un par nuevo, lo inserta Active y lo marca como clave de firma actual.
// Las claves previas no se tocan.
func (ks *KeyStore) GenerateKey() (string, error) {
	// la generación RSA es cara: fuera del lock
	priv, err := ks.generate(ks.bits)
	if err != nil {
		return "", fmt.Errorf("generate rsa key: %w", err)
	}
	kid, err := newKeyID()
	if err != nil {
		return "", err
	}
	rec := &KeyRecord{
		ID:        kid,
		Private:   priv,
		Public:    &priv.PublicKey,
		CreatedAt: ks.now().UTC(),
		Status:    KeyActive,
	}

	ks.mu.Lock()
	ks.keys.Store(kid, rec)
	ks.current.Store(rec)
	ks.mu.Unlock()

	ks.notify()
	return kid, nil
}

// EnsureCurrent garantiza que exista una clave de firma; genera una si el store está vacío.
func (ks *KeyStore) EnsureCurrent() (string, error) {
	if cur := ks.current.Load(); cur != nil {
		return cur.ID, nil
	}
	return ks.GenerateKey()
}

// CurrentSigningKeyID retorna el kid actual o "" si el store está vacío.
func (ks *KeyStore) CurrentSigningKeyID() string {
	if cur := ks.current.Load(); cur != nil {
		return cur.ID
	}
	return ""
}

// PrivateKeyForSigning retorna el kid y la privada de la clave actual, leídos juntos
// para que una rotación concurrente no los desincronice.
func (ks *KeyStore) PrivateKeyForSigning() (string, *rsa.PrivateKey, error) {
	cur := ks.current.Load()
	if cur == nil {
		return "", nil, ErrNoCurrentKey
	}
	return cur.ID, cur.Private, nil
}

// PublicKey resuelve por kid sin importar el estado: las deprecadas siguen verificando.
func (ks *KeyStore) PublicKey(kid string) (*rsa.PublicKey, error) {
	v, ok := ks.keys.Load(kid)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v.(*KeyRecord).Public, nil
}

// ActiveKeys es un snapshot de las claves Active (lo que se publica en el JWKS).
func (ks *KeyStore) ActiveKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey)
	ks.keys.Range(func(_, v any) bool {
		rec := v.(*KeyRecord)
		if rec.Status == KeyActive {
			out[rec.ID] = rec.Public
		}
		return true
	})
	return out
}

// Deprecate pasa a Deprecated toda clave creada antes de olderThan, salvo la actual.
// Es idempotente. Retorna los kids que cambiaron de estado en esta llamada.
func (ks *KeyStore) Deprecate(olderThan time.Time) []string {
	ks.mu.Lock()
	curID := ks.CurrentSigningKeyID()
	var changed []string
	ks.keys.Range(func(k, v any) bool {
		rec := v.(*KeyRecord)
		if rec.ID == curID || rec.Status == KeyDeprecated {
			return true
		}
		if rec.CreatedAt.Before(olderThan) {
			ks.keys.Store(k, rec.withStatus(KeyDeprecated))
			changed = append(changed, rec.ID)
		}
		return true
	})
	ks.mu.Unlock()

	sort.Strings(changed)
	if len(changed) > 0 {
		ks.notify()
	}
	return changed
}

// Purge elimina de forma irreversible todas las claves Deprecated.
// Un token firmado con una clave purgada deja de verificar para siempre.
func (ks *KeyStore) Purge() []string {
	ks.mu.Lock()
	var removed []string
	ks.keys.Range(func(k, v any) bool {
		if v.(*KeyRecord).Status == KeyDeprecated {
			ks.keys.Delete(k)
			removed = append(removed, k.(string))
		}
		return true
	})
	ks.mu.Unlock()

	sort.Strings(removed)
	if len(removed) > 0 {
		ks.notify()
	}
	return removed
}

// Keys lista todas las claves ordenadas por fecha de creación (más vieja primero).
func (ks *KeyStore) Keys() []KeyInfo {
	curID := ks.CurrentSigningKeyID()
	var out []KeyInfo
	ks.keys.Range(func(_, v any) bool {
		rec := v.(*KeyRecord)
		out = append(out, KeyInfo{
			ID:        rec.ID,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
			Current:   rec.ID == curID,
			Bits:      rec.Public.N.BitLen(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// records retorna copias de los punteros a records (para snapshots).
func (ks *KeyStore) records() []*KeyRecord {
	var out []*KeyRecord
	ks.keys.Range(func(_, v any) bool {
		out = append(out, v.(*KeyRecord))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// restore reemplaza el contenido del store. currentID debe apuntar a un record Active.
func (ks *KeyStore) restore(recs []*KeyRecord, currentID string) error {
	var cur *KeyRecord
	for _, r := range recs {
		if r.ID == currentID {
			cur = r
		}
	}
	if currentID != "" && (cur == nil || cur.Status != KeyActive) {
		return fmt.Errorf("restore: current kid %q missing or not active", currentID)
	}

	ks.mu.Lock()
	ks.keys.Range(func(k, _ any) bool {
		ks.keys.Delete(k)
		return true
	})
	for _, r := range recs {
		ks.keys.Store(r.ID, r)
	}
	ks.current.Store(cur)
	ks.mu.Unlock()

	ks.notify()
	return nil
}
