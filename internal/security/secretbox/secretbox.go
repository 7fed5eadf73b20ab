// Package secretbox sella blobs con AES-256-GCM usando una clave derivada (HKDF-SHA256)
// de un secreto de configuración. Formato: nonce(12) || ciphertext+tag.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen       = 32
	minSecretLen = 16
	nonceSizeGCM = 12
)

var (
	ErrSecretTooShort = errors.New("secretbox: secret must be at least 16 bytes")
	ErrOpen           = errors.New("secretbox: message authentication failed")
)

// Box es seguro para uso concurrente.
type Box struct {
	aead cipher.AEAD
}

// New deriva la clave AES a partir de secret. info separa dominios de uso
// (ej: "civicauth/keys-snapshot") para que un mismo secreto no cifre dos cosas con la misma clave.
func New(secret []byte, info string) (*Box, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("secretbox: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal cifra plain autenticando aad (puede ser nil).
func (b *Box) Seal(plain, aad []byte) ([]byte, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secretbox: nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plain, aad), nil
}

// Open revierte Seal. Cualquier alteración (o secreto distinto) da ErrOpen.
func (b *Box) Open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < nonceSizeGCM+b.aead.Overhead() {
		return nil, ErrOpen
	}
	plain, err := b.aead.Open(nil, sealed[:nonceSizeGCM], sealed[nonceSizeGCM:], aad)
	if err != nil {
		return nil, ErrOpen
	}
	return plain, nil
}
