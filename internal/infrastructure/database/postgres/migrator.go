package postgres

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// Migrator applies the SQL files under a file:// source to the run registry
// schema.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator binds a migration source to an open Connection.
func NewMigrator(conn *Connection, sourceURL string) (*Migrator, error) {
	driver, err := postgres.WithInstance(conn.DB(), &postgres.Config{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to create migrate instance").
			WithDetail(sourceURL)
	}
	return &Migrator{m: m, logger: conn.logger}, nil
}

// Up applies every pending migration. No pending migrations is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to run migrations")
	}
	version, dirty, _ := mg.Version()
	mg.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		return apperrors.Newf(apperrors.ErrCodeInvalidInput, "steps must be greater than 0, got %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return apperrors.New(apperrors.ErrCodeDatabaseError, "no migrations to roll back")
		}
		return apperrors.Wrapf(err, apperrors.ErrCodeDatabaseError, "failed to rollback %d step(s)", steps)
	}
	return nil
}

// Version reports the applied version; (0, false) before any migration.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}

// Close releases the migration source and the driver. The driver closes the
// shared *sql.DB, so call it only once the Connection is done.
func (mg *Migrator) Close() error {
	srcErr, _ := mg.m.Close()
	return srcErr
}
