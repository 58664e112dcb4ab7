package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration strategies.
const (
	// MigrateModels lets GORM create and alter tables from the store models.
	MigrateModels = "models"
	// MigrateSQL applies versioned NNN_name.up.sql files.
	MigrateSQL = "sql"
)

// MigrationDriver wraps an open pool in a golang-migrate driver.
type MigrationDriver func(*sql.DB) (migratedb.Driver, error)

var migrationDrivers = map[string]MigrationDriver{
	DriverSQLite: func(db *sql.DB) (migratedb.Driver, error) {
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	},
	DriverPostgres: func(db *sql.DB) (migratedb.Driver, error) {
		return migratepg.WithInstance(db, &migratepg.Config{})
	},
}

// MigrateUp applies every pending migration under dir in fsys. Having
// nothing to apply is not an error.
func (d *DB) MigrateUp(fsys fs.FS, dir string, driver MigrationDriver) error {
	m, err := d.migrator(fsys, dir, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied schema version. Version 0 means no
// migration has run yet.
func (d *DB) MigrationVersion(fsys fs.FS, dir string, driver MigrationDriver) (uint, bool, error) {
	m, err := d.migrator(fsys, dir, driver)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return v, dirty, nil
}

// The migrator is never closed: closing it would close the shared pool.
func (d *DB) migrator(fsys fs.FS, dir string, driver MigrationDriver) (*migrate.Migrate, error) {
	if driver == nil {
		return nil, fmt.Errorf("no migration driver")
	}
	pool, err := d.pool()
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", dir, err)
	}
	target, err := driver(pool)
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "db", target)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
