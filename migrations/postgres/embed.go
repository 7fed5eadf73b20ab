// Package migrations embebe el schema SQL del directorio de usuarios.
package migrations

import "embed"

// FS contiene las migraciones en orden lexicográfico (NNNN_nombre.sql).
//
//go:embed *.sql
var FS embed.FS
