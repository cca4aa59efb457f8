package database

import (
	"context"
	"errors"
	"fmt"

	"changanet/internal/infrastructure/database/migrations"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	iofs "github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrate applies all pending SQL migrations bundled with the service.
// The connection it borrows from pool is released before returning.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := stdlib.OpenDBFromPool(pool)

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{
		MigrationsTable: "chat_schema_migrations",
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("initialize pgx migrate driver: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration connection: %w", closeErr)
		}
	}()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	defer func() {
		if closeErr := source.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration source: %w", closeErr)
		}
	}()

	migrator, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	version, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("no migrations applied yet")
	case err != nil:
		return fmt.Errorf("read migration version: %w", err)
	case dirty:
		return fmt.Errorf("database is dirty at migration %d, fix it manually", version)
	default:
		log.Debug().Uint("version", version).Msg("current migration version")
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if v, _, verr := migrator.Version(); verr == nil {
		log.Info().Uint("version", v).Msg("chat schema up to date")
	}
	return nil
}
