// Package audit registra las mutaciones administrativas sobre las claves de firma.
package audit

import (
	"context"

	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	EventKeyRotated     = "key.rotated"
	EventKeysDeprecated = "keys.deprecated"
	EventKeysPurged     = "keys.purged"
	EventTaskTriggered  = "task.triggered"
)

// Log escribe un evento estructurado en el logger "audit" del request.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	fields = append(fields, zap.String("event", event))
	logger.From(ctx).Named("audit").Info(event, fields...)
}
