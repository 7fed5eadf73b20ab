package validation

import "regexp"

// Reglas de nombre de rol (header de confianza):
// - Empieza y termina con [A-Za-z0-9].
// - En el medio se permite [A-Za-z0-9:_.-].
// - Largo 1..64.
//
// Válidos: USER, ADMIN, role:read, ops_team-2
// Inválidos: "", ":lead", "trail:", "bad space", "semi;colon", 65+ chars.
var roleNameRe = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9:_\.-]{0,62}[A-Za-z0-9])?$`)

// ValidRoleName indica si name puede viajar como rol de una identidad.
func ValidRoleName(name string) bool {
	return roleNameRe.MatchString(name)
}
