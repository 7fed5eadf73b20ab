// Package logger expone un zap.Logger global con scoping por contexto.
//
//   - Init(cfg) una vez en main; L()/S() en cualquier lado.
//   - Los middlewares HTTP inyectan un logger con request_id vía ToContext;
//     handlers y servicios usan From(ctx).
//   - "dev" escribe consola con colores, "prod" escribe JSON.
//
// Uso típico:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Refresh"))
//	log.Info("tokens reissued", logger.Subject(email), logger.KeyID(kid))
package logger
