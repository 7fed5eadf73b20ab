// Package admin contiene los controllers de administración de claves y triggers
// de rotación. Todas las rutas van detrás de RequireAdminKey.
package admin

import (
	"context"
	"time"

	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/rotation"
)

// KeyAdmin es la parte del KeyStore que expone el admin API.
type KeyAdmin interface {
	GenerateKey() (string, error)
	Deprecate(olderThan time.Time) []string
	Purge() []string
	Keys() []jwt.KeyInfo
	CurrentSigningKeyID() string
}

// TaskRunner es la parte del scheduler que expone el admin API.
type TaskRunner interface {
	Status() []rotation.TaskStatus
	Trigger(ctx context.Context, name string) error
	ThresholdDays() int
	DeprecationCutoff() time.Time
}

type Controllers struct {
	Keys  *KeysController
	Tasks *TasksController
}

func NewControllers(keys KeyAdmin, tasks TaskRunner) *Controllers {
	return &Controllers{
		Keys:  NewKeysController(keys, tasks),
		Tasks: NewTasksController(tasks),
	}
}
