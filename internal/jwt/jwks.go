package jwt

import (
	"crypto/rsa"
	"encoding/json"
	"sort"
)

// JWK es una entrada RSA del documento de discovery.
type JWK struct {
	KID string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS es el documento servido en /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// RSAPublicJWK serializa una pública RSA (n/e en base64url big-endian sin padding).
func RSAPublicJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		KID: kid,
		Kty: "RSA",
		Use: "sig",
		Alg: AlgRS256,
		N:   encodeBase64URL(pub.N.Bytes()),
		E:   encodeBase64URL(rsaExponentBytes(pub.E)),
	}
}

// BuildJWKS arma el documento solo con las claves Active, ordenadas por kid.
// Las deprecadas no se publican aunque sigan verificando por kid.
func BuildJWKS(ks *KeyStore) JWKS {
	active := ks.ActiveKeys()
	kids := make([]string, 0, len(active))
	for kid := range active {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	doc := JWKS{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		doc.Keys = append(doc.Keys, RSAPublicJWK(kid, active[kid]))
	}
	return doc
}

// JWKSJSON es BuildJWKS ya serializado.
func JWKSJSON(ks *KeyStore) ([]byte, error) {
	return json.Marshal(BuildJWKS(ks))
}
