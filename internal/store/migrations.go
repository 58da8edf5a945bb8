package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	sqlite3mig "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

// LatestMigrationVersion is the latest migration version of the database.
// Used to implement downgrade protection.
//
// NOTE: This MUST be updated when a new migration is added.
const LatestMigrationVersion uint = 1

// ErrMigrationDowngrade is returned when a database downgrade is detected.
var ErrMigrationDowngrade = errors.New("database downgrade detected")

// migrationLogger adapts the package logger to the migrate.Logger interface.
type migrationLogger struct{}

// Printf implements the migrate.Logger interface.
func (migrationLogger) Printf(format string, v ...any) {
	log.Infof(strings.TrimRight(format, "\n"), v...)
}

// Verbose returns true when verbose logging is enabled.
func (migrationLogger) Verbose() bool {
	return true
}

// ApplyMigrations brings the database schema up to the latest version using
// the embedded migration files. A dirty migration state or a database newer
// than this binary's migrations aborts with an error rather than risking
// data loss.
func ApplyMigrations(db *sql.DB) error {
	driver, err := sqlite3mig.WithInstance(
		db, &sqlite3mig.Config{},
	)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	// Create the migration source from the embedded file system.
	migrateFileServer, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	sqlMigrate, err := migrate.NewWithInstance(
		"migrations", migrateFileServer, "revtree", driver,
	)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	sqlMigrate.Log = migrationLogger{}

	version, dirty, err := sqlMigrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current migration "+
			"version: %w", err)
	}

	// A dirty state means a previous migration did not complete; manual
	// intervention is required before applying anything else.
	if dirty {
		return fmt.Errorf("database is in a dirty state at version "+
			"%v, manual intervention required", version)
	}

	// Down migrations may drop data, so refuse to run against a database
	// newer than this binary knows about.
	if uint(version) > LatestMigrationVersion {
		return fmt.Errorf("%w: db_version=%v, "+
			"latest_migration_version=%v", ErrMigrationDowngrade,
			version, LatestMigrationVersion)
	}

	if err := sqlMigrate.Up(); err != nil &&
		!errors.Is(err, migrate.ErrNoChange) {

		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
