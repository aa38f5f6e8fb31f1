// Package store implements the embedded relational persistence layer: an
// sqlite-by-default (optionally Postgres) backend for the control plane's
// durable tables — events, conversations, cluster snapshots, preferences,
// autonomy actions, memories, presence logs, and reminders.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/homelab/jarvis/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store wraps the opened database handle and exposes one typed accessor
// per durable table. Open sets now to nowRFC3339; the accessors call
// nowRFC3339 directly rather than through this field.
type Store struct {
	db  *sql.DB
	now func() string
}

// Open opens (creating if necessary) the configured database, applies the
// sqlite pragmas this plane always runs with, and returns a Store ready for
// Migrate.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	driverName, dsn, err := resolveDriver(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		if err := applySQLitePragmas(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db, now: nowRFC3339}, nil
}

// resolveDriver picks the database/sql driver name and DSN for cfg, creating
// the sqlite database's parent directory if it doesn't yet exist.
func resolveDriver(cfg config.DatabaseConfig) (driverName, dsn string, err error) {
	switch cfg.Driver {
	case "", "sqlite":
		dir := filepath.Dir(cfg.DSN)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", fmt.Errorf("store: create database directory: %w", err)
			}
		}
		return "sqlite", cfg.DSN, nil
	case "postgres":
		return "pgx", cfg.DSN, nil
	default:
		return "", "", fmt.Errorf("store: unsupported database driver %q", cfg.Driver)
	}
}

// applySQLitePragmas turns on write-ahead logging with a normal sync mode
// and a 64 MB page cache, matching this plane's durability/throughput
// tradeoff for a single-writer embedded database.
func applySQLitePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // 64 MB, negative = KB of page cache
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for Migrate and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func marshalJSONOrEmpty(b []byte) string {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return "{}"
	}
	return trimmed
}
