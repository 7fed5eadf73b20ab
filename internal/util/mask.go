// Package util junta helpers chicos sin dependencias de dominio.
package util

import "strings"

// MaskEmail oculta un email para logs: "ada@civic.test" → "a…@c….test".
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		if len(s) <= 3 {
			return strings.Repeat("*", len(s))
		}
		return s[:1] + "…"
	}
	local, domain := s[:at], s[at+1:]
	labels := strings.Split(domain, ".")
	if len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return local[:1] + "…@" + strings.Join(labels, ".")
}
