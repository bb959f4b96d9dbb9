// Package db opens the SQLite staging database and applies its embedded
// schema migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a SQLite database connection holding the staging store
type DB struct {
	*sql.DB
	path string
}

// dsn carries the connection settings as go-sqlite3 parameters so every
// pooled connection gets them, not only the first one
func dsn(file string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_synchronous", "NORMAL")
	return "file:" + file + "?" + params.Encode()
}

// Open opens a SQLite database at the given path, creating its directory
func Open(file string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(file))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", file, err)
	}
	return &DB{DB: conn, path: file}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	_, err := db.MigrateWithInfo()
	return err
}

// MigrateWithInfo runs all pending migrations and returns the ones it applied
func (db *DB) MigrateWithInfo() ([]string, error) {
	return db.MigrateContext(context.Background())
}

// MigrateContext applies every pending migration, each in its own
// transaction, and returns the ones it applied. A failed migration leaves
// the ones before it applied.
func (db *DB) MigrateContext(ctx context.Context) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	_, pending, err := db.MigrationStatus()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, version := range pending {
		if err := db.apply(ctx, version); err != nil {
			return applied, err
		}
		applied = append(applied, version)
	}
	return applied, nil
}

func (db *DB) apply(ctx context.Context, version string) error {
	content, err := migrationsFS.ReadFile(path.Join("migrations", version))
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", version, err)
	}
	return nil
}

// MigrationStatus returns lists of applied and pending migrations
func (db *DB) MigrationStatus() (applied []string, pending []string, err error) {
	all, err := embeddedMigrations()
	if err != nil {
		return nil, nil, err
	}

	var tables int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&tables); err != nil {
		return nil, nil, fmt.Errorf("failed to check for schema_migrations table: %w", err)
	}
	if tables == 0 {
		return nil, all, nil
	}

	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		done[version] = true
		applied = append(applied, version)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	for _, m := range all {
		if !done[m] {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

// RequiresMigrationError returns a descriptive error naming the database and
// its current version when migrations are pending, and nil otherwise
func (db *DB) RequiresMigrationError() error {
	applied, pending, err := db.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	current := "none"
	if len(applied) > 0 {
		current = applied[len(applied)-1]
	}
	return fmt.Errorf("database at %s (version: %s) requires migration: %d pending migration(s). Run 'ghl2hsadm migrate' to update",
		db.path, current, len(pending))
}

// Snapshot writes a consistent copy of the database to out with VACUUM INTO.
// The copy needs no WAL or SHM files. out must not exist.
func (db *DB) Snapshot(ctx context.Context, out string) error {
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("output file already exists: %s (remove it first or choose a different path)", out)
	}
	quoted := strings.ReplaceAll(out, "'", "''")
	if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		os.Remove(out)
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// embeddedMigrations lists the embedded migration files in apply order
func embeddedMigrations() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrations = append(migrations, entry.Name())
		}
	}
	sort.Strings(migrations)
	return migrations, nil
}
