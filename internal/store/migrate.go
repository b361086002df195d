package store

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Changed bool
}

// DirtySchemaError reports a database left mid-migration by an earlier run.
type DirtySchemaError struct {
	Path    string
	Version uint
}

func (e *DirtySchemaError) Error() string {
	return fmt.Sprintf("schema of %s is dirty at version %d", e.Path, e.Version)
}

// Migrate runs all pending migrations found at the root of source.
func (db *DB) Migrate(source fs.FS) (*MigrateResult, error) {
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	changed := true
	if err := m.Up(); err != nil {
		var dirtyErr migrate.ErrDirty
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			changed = false
		case errors.As(err, &dirtyErr):
			return nil, &DirtySchemaError{Path: db.path, Version: uint(dirtyErr.Version)}
		default:
			return nil, fmt.Errorf("migration up: %w", err)
		}
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return nil, &DirtySchemaError{Path: db.path, Version: version}
	}
	return &MigrateResult{Version: version, Changed: changed}, nil
}

// OpenMigrated opens path and applies source's migrations.
func OpenMigrated(path string, source fs.FS) (*DB, *MigrateResult, error) {
	db, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := db.Migrate(source)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, result, nil
}
