package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate brings the database schema up to the latest version. driverName is
// the same cfg.Driver value passed to Open ("sqlite" or "postgres").
func (s *Store) Migrate(driverName string) error {
	var (
		dbDriver database.Driver
		err      error
	)
	switch driverName {
	case "", "sqlite":
		dbDriver, err = sqlite3.WithInstance(s.db, &sqlite3.Config{})
	case "postgres":
		dbDriver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		return fmt.Errorf("store: unsupported database driver %q", driverName)
	}
	if err != nil {
		return fmt.Errorf("store: build migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("store: load embedded migrations: %w", err)
	}

	name := driverName
	if name == "" {
		name = "sqlite"
	}
	m, err := migrate.NewWithInstance("iofs", source, name, dbDriver)
	if err != nil {
		return fmt.Errorf("store: create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// Status reports the currently applied migration version and whether the
// schema is in a dirty (partially-applied) state, for `jarvis migrate
// status`.
func (s *Store) Status(driverName string) (version uint, dirty bool, err error) {
	var dbDriver database.Driver
	switch driverName {
	case "", "sqlite":
		dbDriver, err = sqlite3.WithInstance(s.db, &sqlite3.Config{})
	case "postgres":
		dbDriver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		return 0, false, fmt.Errorf("store: unsupported database driver %q", driverName)
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: build migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("store: load embedded migrations: %w", err)
	}
	name := driverName
	if name == "" {
		name = "sqlite"
	}
	m, err := migrate.NewWithInstance("iofs", source, name, dbDriver)
	if err != nil {
		return 0, false, fmt.Errorf("store: create migrator: %w", err)
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
