package helpers

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// FromBytes calcula un ETag débil W/"<b64url(sha256)>".
func FromBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return `W/"` + base64.RawURLEncoding.EncodeToString(sum[:]) + `"`
}

// NotModified: If-None-Match coincide con etag (o es "*").
func NotModified(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	if inm == "" {
		return false
	}
	for _, t := range strings.Split(inm, ",") {
		t = strings.TrimSpace(t)
		if t == "*" || t == etag || strings.TrimPrefix(t, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
