package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dropDatabas3/civicauth/internal/util/atomicwrite"
)

const snapshotVersion = 1

// Sealer cifra/descifra el snapshot. secretbox.Box lo implementa.
type Sealer interface {
	Seal(plain, aad []byte) ([]byte, error)
	Open(sealed, aad []byte) ([]byte, error)
}

type snapshotKey struct {
	ID        string    `json:"kid"`
	Status    KeyStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	PEM       string    `json:"private_pem"`
}

type snapshotDoc struct {
	Version int           `json:"version"`
	Current string        `json:"current"`
	Keys    []snapshotKey `json:"keys"`
}

var snapshotAAD = []byte("civicauth/keys-snapshot/v1")

// SaveSnapshot persiste todas las claves (con sus estados) cifradas en path.
// La escritura es atómica: un crash a mitad deja el snapshot anterior. Saves
// concurrentes se ejecutan uno detrás de otro.
func (ks *KeyStore) SaveSnapshot(path string, s Sealer) error {
	ks.saveMu.Lock()
	defer ks.saveMu.Unlock()

	ks.mu.Lock()
	recs := ks.records()
	cur := ks.CurrentSigningKeyID()
	ks.mu.Unlock()

	doc := snapshotDoc{Version: snapshotVersion, Current: cur, Keys: make([]snapshotKey, 0, len(recs))}
	for _, r := range recs {
		der, err := x509.MarshalPKCS8PrivateKey(r.Private)
		if err != nil {
			return fmt.Errorf("snapshot: marshal %s: %w", r.ID, err)
		}
		doc.Keys = append(doc.Keys, snapshotKey{
			ID:        r.ID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			PEM:       string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		})
	}

	plain, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	sealed, err := s.Seal(plain, snapshotAAD)
	if err != nil {
		return fmt.Errorf("snapshot: seal: %w", err)
	}
	return atomicwrite.WriteFile(path, sealed, 0o600)
}

// LoadSnapshot reemplaza el contenido del store con el snapshot de path.
// Retorna os.ErrNotExist (envuelto) si todavía no hay snapshot.
func (ks *KeyStore) LoadSnapshot(path string, s Sealer) error {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot: read: %w", err)
	}
	plain, err := s.Open(sealed, snapshotAAD)
	if err != nil {
		return fmt.Errorf("snapshot: open: %w", err)
	}
	var doc snapshotDoc
	if err := json.Unmarshal(plain, &doc); err != nil {
		return fmt.Errorf("snapshot: decode: %w", err)
	}
	if doc.Version != snapshotVersion {
		return fmt.Errorf("snapshot: unsupported version %d", doc.Version)
	}

	recs := make([]*KeyRecord, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		priv, err := parseRSAPrivatePEM(k.PEM)
		if err != nil {
			return fmt.Errorf("snapshot: key %s: %w", k.ID, err)
		}
		if k.Status != KeyActive && k.Status != KeyDeprecated {
			return fmt.Errorf("snapshot: key %s: unknown status %q", k.ID, k.Status)
		}
		recs = append(recs, &KeyRecord{
			ID:        k.ID,
			Private:   priv,
			Public:    &priv.PublicKey,
			CreatedAt: k.CreatedAt,
			Status:    k.Status,
		})
	}
	return ks.restore(recs, doc.Current)
}

func parseRSAPrivatePEM(s string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an rsa key")
	}
	return priv, nil
}
