// Package database provides the embedded schema migrations of the SQL stores.
package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// registers the pgx5:// scheme
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// registers the sqlite3:// scheme
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Dialects with an embedded migration set
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

func migrationsSource(dialect string) (source.Driver, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	return iofs.New(migrationsFS, "migrations/"+dialect)
}

// NewPostgresMigrator returns a migrator for a postgres:// or postgresql:// connection string
func NewPostgresMigrator(connString string) (Migrator, error) {
	d, err := migrationsSource(DialectPostgres)
	if err != nil {
		return nil, err
	}

	url := connString
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, prefix) {
			url = "pgx5://" + strings.TrimPrefix(url, prefix)
			break
		}
	}

	return migrate.NewWithSourceInstance("iofs", d, url)
}

// NewSQLiteMigrator returns a migrator for the SQLite database file at path
func NewSQLiteMigrator(path string) (Migrator, error) {
	d, err := migrationsSource(DialectSQLite)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", d, "sqlite3://"+path)
}

// MigrateUp applies every pending migration. An up-to-date schema is not an error.
func MigrateUp(m Migrator) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrateDown rolls back the given number of migrations, or all of them when steps is zero
func MigrateDown(m Migrator, steps int) error {
	var err error
	if steps <= 0 {
		err = m.Down()
	} else {
		err = m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// CloseMigrator closes both the source and the database side of m
func CloseMigrator(m Migrator) error {
	srcErr, dbErr := m.Close()
	return errors.Join(srcErr, dbErr)
}
