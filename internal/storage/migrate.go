package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/satstac/stac-sentinel/migrations"
)

// MigrationStatus is the schema version recorded in the migrations table.
type MigrationStatus struct {
	Version   uint
	Dirty     bool
	Available int
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	migrate   *migrate.Migrate
	available int
	logger    *slog.Logger
}

// migrateLogger routes golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

var _ migrate.Logger = (*migrateLogger)(nil)

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// NewMigrator validates the embedded migrations and prepares a runner on conn.
func NewMigrator(conn *Connection, logger *slog.Logger) (*Migrator, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	available, err := migrations.Validate(migrations.FS())
	if err != nil {
		return nil, fmt.Errorf("embedded migration validation failed: %w", err)
	}

	driver, err := postgres.WithInstance(conn.DB, &postgres.Config{MigrationsTable: conn.config.MigrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{logger: logger}

	return &Migrator{migrate: m, available: available, logger: logger}, nil
}

// Up applies all pending migrations. Nothing to apply is not an error.
func (m *Migrator) Up() error {
	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No new migrations to apply")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	m.logger.Info("All migrations applied successfully")

	return nil
}

// Down rolls back the last applied migration.
func (m *Migrator) Down() error {
	err := m.migrate.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to roll back")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	m.logger.Info("Last migration rolled back successfully")

	return nil
}

// Status reports the applied version. A fresh database has version 0.
func (m *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{Available: m.available}, nil
	}

	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}

	return MigrationStatus{Version: version, Dirty: dirty, Available: m.available}, nil
}

// Close releases the migration connection together with the pool it was built on.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()

	return errors.Join(srcErr, dbErr)
}
