package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Identidad y claves

// Subject es el "sub" del token (email del usuario).
func Subject(v string) zap.Field { return zap.String("sub", v) }
func Role(v string) zap.Field    { return zap.String("role", v) }
func Email(v string) zap.Field   { return zap.String("email", v) }

// KeyID identifica una clave de firma (kid).
func KeyID(v string) zap.Field { return zap.String("kid", v) }

func KeyIDs(v []string) zap.Field { return zap.Strings("kids", v) }

// Task nombra un trigger del scheduler de rotación.
func Task(v string) zap.Field { return zap.String("task", v) }

// Sistema

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// Genéricos

func Count(v int) zap.Field                  { return zap.Int("count", v) }
func Any(key string, v any) zap.Field        { return zap.Any(key, v) }
func String(key, v string) zap.Field         { return zap.String(key, v) }
func Int(key string, v int) zap.Field        { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field      { return zap.Bool(key, v) }
func Time(key string, v time.Time) zap.Field { return zap.Time(key, v) }
