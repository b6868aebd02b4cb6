package datalayer

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/glizzus/radio-relay/internal/config"
	"github.com/golang-migrate/migrate/v4"
	pgxMigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresPool connects to the database described by cfg and checks
// that it answers.
func NewPostgresPool(ctx context.Context, cfg *config.PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return pool, nil
}

// NewPostgresPoolFromEnv constructs a pool from the POSTGRES_* environment.
func NewPostgresPoolFromEnv(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("unable to load postgres config: %w", err)
	}
	return NewPostgresPool(ctx, cfg)
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigratePostgres applies every embedded migration that has not run yet.
func MigratePostgres(pool *pgxpool.Pool) (err error) {
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	driver, derr := pgxMigrate.WithInstance(db, &pgxMigrate.Config{})
	if derr != nil {
		return fmt.Errorf("unable to create migration driver: %w", derr)
	}

	src, serr := iofs.New(migrationsFS, "migrations")
	if serr != nil {
		return fmt.Errorf("unable to read embedded migrations: %w", serr)
	}

	m, merr := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if merr != nil {
		return fmt.Errorf("unable to create migrator: %w", merr)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		err = errors.Join(err, srcErr, dbErr)
	}()

	if upErr := m.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("unable to apply migrations: %w", upErr)
	}
	return nil
}
