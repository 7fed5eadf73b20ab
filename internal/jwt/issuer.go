package jwt

import (
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ClaimRoles es el claim con el rol del usuario; solo va en access tokens.
const ClaimRoles = "roles"

var reservedClaims = map[string]struct{}{"sub": {}, "iat": {}, "exp": {}, "iss": {}}

// Issuer firma tokens RS256 con la clave actual del KeyStore.
type Issuer struct {
	Iss        string
	Keys       *KeyStore
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now se puede fijar en tests.
	Now func() time.Time
}

func NewIssuer(iss string, ks *KeyStore, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{Iss: iss, Keys: ks, AccessTTL: accessTTL, RefreshTTL: refreshTTL, Now: time.Now}
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Sign arma {sub, iat, exp, iss, ...claims} y lo firma con la clave de firma actual.
// El kid y la privada se leen en cada llamada: una rotación entre dos llamadas se
// refleja en la siguiente emisión sin coordinación extra.
func (i *Issuer) Sign(subject string, claims map[string]any, ttl time.Duration) (string, error) {
	tok, _, err := i.sign(subject, claims, ttl)
	return tok, err
}

// sign retorna además el exp exacto que quedó embebido en el token.
func (i *Issuer) sign(subject string, claims map[string]any, ttl time.Duration) (string, time.Time, error) {
	kid, priv, err := i.Keys.PrivateKeyForSigning()
	if err != nil {
		return "", time.Time{}, err
	}

	now := i.now().UTC()
	mc := jwtv5.MapClaims{}
	for k, v := range claims {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		mc[k] = v
	}
	mc["sub"] = subject
	mc["iat"] = now.Unix()
	exp := now.Add(ttl).Unix()
	mc["exp"] = exp
	mc["iss"] = i.Iss

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, mc)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token (kid=%s): %w", kid, err)
	}
	return signed, time.Unix(exp, 0).UTC(), nil
}

// IssueAccess emite un access token con el claim roles. El rol es obligatorio.
func (i *Issuer) IssueAccess(subject, role string) (string, time.Time, error) {
	if strings.TrimSpace(role) == "" {
		return "", time.Time{}, ErrMissingRole
	}
	return i.sign(subject, map[string]any{ClaimRoles: role}, i.AccessTTL)
}

// IssueRefresh emite un refresh token: sin rol, para acotar el daño si se filtra.
func (i *Issuer) IssueRefresh(subject string) (string, time.Time, error) {
	return i.sign(subject, nil, i.RefreshTTL)
}
