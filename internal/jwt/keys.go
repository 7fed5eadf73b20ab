package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultKeyBits = 2048
	minKeyBits     = 1024

	// AlgRS256 es el único algoritmo que firmamos y aceptamos.
	AlgRS256 = "RS256"
)

// KeyStatus es el estado de una clave dentro del store.
type KeyStatus string

const (
	// KeyActive: publicada en el JWKS; puede ser (o no) la clave de firma actual.
	KeyActive KeyStatus = "active"
	// KeyDeprecated: fuera del JWKS, solo resoluble por kid para verificar.
	KeyDeprecated KeyStatus = "deprecated"
)

// KeyRecord es una clave RSA con su metadata. El material nunca cambia;
// una transición de estado reemplaza el record completo.
type KeyRecord struct {
	ID        string
	Private   *rsa.PrivateKey
	Public    *rsa.PublicKey
	CreatedAt time.Time
	Status    KeyStatus
}

func (r *KeyRecord) withStatus(s KeyStatus) *KeyRecord {
	cp := *r
	cp.Status = s
	return &cp
}

// KeyInfo es la vista pública de un record (sin material privado).
type KeyInfo struct {
	ID        string    `json:"kid"`
	Status    KeyStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
	Bits      int       `json:"bits"`
}

// KeyGenerator produce un par RSA. Se inyecta en tests para no pagar 2048 bits.
type KeyGenerator func(bits int) (*rsa.PrivateKey, error)

func generateRSA(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

// newKeyID arma ids "key-<uuidv7>": únicos bajo concurrencia y ordenables por tiempo.
func newKeyID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("kid: %w", err)
	}
	return "key-" + id.String(), nil
}

// encodeBase64URL codifica sin padding (RFC 7515 §2).
func encodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func rsaExponentBytes(e int) []byte {
	return big.NewInt(int64(e)).Bytes()
}
