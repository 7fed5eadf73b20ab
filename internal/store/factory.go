// Package store abre el directorio de usuarios según el driver configurado.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/dropDatabas3/civicauth/internal/store/memory"
	"github.com/dropDatabas3/civicauth/internal/store/pg"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Driver   string
	DSN      string
	Postgres struct {
		MaxConns, MinConns int
		ConnMaxLifetime    time.Duration
		AutoMigrate        bool
	}
}

// Stores expone el directorio y, si es Postgres, el pool para métricas.
type Stores struct {
	Directory repository.Directory
	// Pool es nil para drivers sin pool.
	Pool func() *pgxpool.Pool
}

// Close libera el directorio.
func (s *Stores) Close() {
	if s != nil && s.Directory != nil {
		s.Directory.Close()
	}
}

// Open abre el directorio. "memory" no persiste nada entre reinicios.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	log := logger.From(ctx).With(logger.Component("store"))

	switch strings.ToLower(cfg.Driver) {
	case "", "memory", "mem":
		log.Warn("using in-memory user directory; data is lost on restart")
		return &Stores{Directory: memory.New()}, nil

	case "postgres", "pg", "postgresql":
		st, err := pg.New(ctx, cfg.DSN, pg.PoolConfig{
			MaxConns:        int32(cfg.Postgres.MaxConns),
			MinConns:        int32(cfg.Postgres.MinConns),
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("store: migrate: %w", err)
			}
			log.Info("postgres schema migrated")
		}
		return &Stores{Directory: st, Pool: st.Pool}, nil

	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
