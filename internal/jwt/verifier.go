package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Verified son los datos de un token que pasó todas las validaciones.
type Verified struct {
	Subject   string
	Roles     string
	KeyID     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// hasRoles: el claim roles estaba presente, aunque fuera vacío.
	hasRoles bool
}

// IsRefresh: los refresh tokens no llevan claim roles. Un roles vacío pero
// presente no cuenta como refresh.
func (v *Verified) IsRefresh() bool { return !v.hasRoles && v.Roles == "" }

// Verifier chequea firma e issuer/exp contra las claves del KeyStore. Nunca lo muta.
type Verifier struct {
	Iss  string
	Keys *KeyStore

	// StrictKID rechaza kids desconocidos con ErrKeyNotFound en vez de
	// caer a la clave actual.
	StrictKID bool

	Now func() time.Time

	parser *jwtv5.Parser
}

func NewVerifier(iss string, ks *KeyStore, strictKID bool) *Verifier {
	return &Verifier{
		Iss:       iss,
		Keys:      ks,
		StrictKID: strictKID,
		Now:       time.Now,
		// iss/exp los validamos a mano para respetar el orden firma → issuer → expiración
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods([]string{AlgRS256}),
			jwtv5.WithoutClaimsValidation(),
		),
	}
}

// keyfunc resuelve la pública por el kid del header. Sin kid o con kid desconocido
// usa la clave actual (salvo StrictKID); si esa tampoco firma, el parser devuelve
// firma inválida.
func (v *Verifier) keyfunc(t *jwtv5.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid != "" {
		pub, err := v.Keys.PublicKey(kid)
		if err == nil {
			return pub, nil
		}
		if v.StrictKID {
			return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
		}
	}
	return v.currentPublic()
}

func (v *Verifier) currentPublic() (*rsa.PublicKey, error) {
	cur := v.Keys.CurrentSigningKeyID()
	if cur == "" {
		return nil, ErrKeyNotFound
	}
	return v.Keys.PublicKey(cur)
}

// Verify valida raw y retorna sus claims. Los errores son siempre uno de
// ErrMalformed, ErrKeyNotFound, ErrSignatureInvalid, ErrIssuerMismatch o ErrExpired.
func (v *Verifier) Verify(raw string) (*Verified, error) {
	parser := v.parser
	if parser == nil {
		parser = jwtv5.NewParser(jwtv5.WithValidMethods([]string{AlgRS256}), jwtv5.WithoutClaimsValidation())
	}

	tk, err := parser.Parse(raw, v.keyfunc)
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		case errors.Is(err, ErrKeyNotFound):
			return nil, ErrKeyNotFound
		default:
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !tk.Valid || !ok {
		return nil, ErrSignatureInvalid
	}

	iss, _ := claims.GetIssuer()
	if iss != v.Iss {
		return nil, ErrIssuerMismatch
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing or invalid exp", ErrMalformed)
	}
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	if !now.Before(exp.Time) {
		return nil, ErrExpired
	}

	sub, _ := claims.GetSubject()
	out := &Verified{
		Subject:   sub,
		Issuer:    iss,
		ExpiresAt: exp.Time,
	}
	out.KeyID, _ = tk.Header["kid"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if raw, present := claims[ClaimRoles]; present {
		out.hasRoles = true
		out.Roles, _ = raw.(string)
	}
	return out, nil
}
