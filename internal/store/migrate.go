package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Clark-Hu/theater-api/db"
)

// Migrate applies all pending SQL migrations bundled in db/migrations.
func (s *Store) Migrate(ctx context.Context) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sqlDB := stdlib.OpenDBFromPool(s.pool)

	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("initialize migration driver: %w", err)
	}

	source, err := iofs.New(db.Migrations, db.MigrationsDir)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("load migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	version, dirty, verr := migrator.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		s.logger.Info().Msg("no migrations have been applied yet")
	case verr != nil:
		s.logger.Warn().Err(verr).Msg("read migration version")
	default:
		s.logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration state")
	}

	if dirty {
		s.logger.Warn().Uint("version", version).Msg("database is in dirty state, forcing version")
		if err := migrator.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d to clear dirty state: %w", version, err)
		}
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.logger.Info().Msg("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	if finalVersion, _, err := migrator.Version(); err == nil {
		s.logger.Info().Uint("version", finalVersion).Msg("migrations applied")
	}
	return nil
}
