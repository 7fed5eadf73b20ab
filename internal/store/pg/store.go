// Package pg implementa el directorio de usuarios sobre PostgreSQL (pgx/v5).
package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/civicauth/internal/domain/repository"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	migrations "github.com/dropDatabas3/civicauth/migrations/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig ajusta el pool; ceros = defaults de pgxpool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

var _ repository.Directory = (*Store)(nil)

// New abre el pool. Si la DB no responde al arrancar solo se loguea: el pool reintenta
// en cada Acquire y /readyz refleja el estado.
func New(ctx context.Context, dsn string, cfg PoolConfig) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}
	log := logger.From(ctx).With(logger.Component("pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Pool expone el pool para el collector de métricas.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Migrate aplica el schema embebido. Las migraciones son idempotentes (IF NOT EXISTS).
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, n := range names {
		b, err := migrations.FS.ReadFile(n)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("pg: migration %s: %w", n, err)
		}
	}
	return tx.Commit(ctx)
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

const userCols = `id::text, email, name, provider, COALESCE(provider_id, ''), role, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Provider, &u.ProviderID, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, normEmail(email)))
}

// FindOrCreate corre en una tx: insert con ON CONFLICT para que dos logins
// simultáneos del mismo email no creen duplicados.
func (s *Store) FindOrCreate(ctx context.Context, p repository.ExternalProfile, provider string) (*repository.User, bool, error) {
	email := normEmail(p.Email)
	if email == "" {
		return nil, false, repository.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const ins = `
INSERT INTO users (id, email, name, provider, provider_id, role)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
ON CONFLICT (email) DO NOTHING`
	tag, err := tx.Exec(ctx, ins, uuid.NewString(), email, p.Name, provider, p.ExternalID, repository.RoleUser)
	if err != nil {
		return nil, false, fmt.Errorf("pg: insert user: %w", err)
	}
	created := tag.RowsAffected() == 1

	if created {
		const insProfile = `
INSERT INTO user_profiles (user_id, avatar_url)
SELECT id, $2 FROM users WHERE email = $1`
		if _, err := tx.Exec(ctx, insProfile, email, p.Picture); err != nil {
			return nil, false, fmt.Errorf("pg: insert profile: %w", err)
		}
	} else if p.Name != "" {
		const upd = `UPDATE users SET name = $2, updated_at = now() WHERE email = $1 AND name <> $2`
		if _, err := tx.Exec(ctx, upd, email, p.Name); err != nil {
			return nil, false, fmt.Errorf("pg: update name: %w", err)
		}
	}

	u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return u, created, nil
}

const profileSelect = `
SELECT u.id::text, u.email, u.name, p.bio, p.location, p.website, p.phone_number, p.avatar_url, p.updated_at
FROM users u JOIN user_profiles p ON p.user_id = u.id
WHERE u.email = $1`

func scanProfile(row pgx.Row) (*repository.Profile, error) {
	var p repository.Profile
	if err := row.Scan(&p.UserID, &p.Email, &p.Name, &p.Bio, &p.Location, &p.Website, &p.PhoneNumber, &p.AvatarURL, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, email string) (*repository.Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, profileSelect, normEmail(email)))
}

func (s *Store) UpdateProfile(ctx context.Context, email string, in repository.ProfileUpdate) (*repository.Profile, error) {
	const upd = `
UPDATE user_profiles p
SET bio = $2, location = $3, website = $4, phone_number = $5, avatar_url = $6, updated_at = now()
FROM users u
WHERE p.user_id = u.id AND u.email = $1`
	tag, err := s.pool.Exec(ctx, upd, normEmail(email), in.Bio, in.Location, in.Website, in.PhoneNumber, in.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("pg: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}
	return s.GetProfile(ctx, email)
}
