// Package storage persists STAC Items and ingestion runs in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const healthCheckTimeout = 5 * time.Second

var (
	// ErrNoDatabaseConnection is returned when a store is built without a connection.
	ErrNoDatabaseConnection = errors.New("no database connection")
	// ErrDatabaseUnavailable wraps connection-class failures (SQLSTATE 08xxx, closed pools).
	ErrDatabaseUnavailable = errors.New("database unavailable")
)

// Connection is a pooled lib/pq handle.
type Connection struct {
	*sql.DB
	config *Config
}

// NewConnection opens and pings the database described by cfg.
func NewConnection(ctx context.Context, cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	conn := &Connection{DB: db, config: cfg}

	if err := conn.HealthCheck(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return conn, nil
}

// HealthCheck pings the database.
func (c *Connection) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping %s: %w", ErrDatabaseUnavailable, c.config.MaskDatabaseURL(), err)
	}

	return nil
}

// isDatabaseConnectionError reports PostgreSQL class 08 errors and closed connections.
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

func classify(err error) error {
	if isDatabaseConnectionError(err) {
		return fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	}

	return err
}
