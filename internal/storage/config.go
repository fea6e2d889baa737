package storage

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/satstac/stac-sentinel/internal/config"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultMigrationsTable = "schema_migrations"
)

var (
	// ErrDatabaseURLEmpty is returned when the database url is an empty string.
	ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")
	// ErrInvalidPoolSize is returned when the idle pool is larger than the open pool.
	ErrInvalidPoolSize = errors.New("max idle connections cannot exceed max open connections")
)

// Config holds PostgreSQL connection settings for the item index.
type Config struct {
	databaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsTable string
}

// LoadConfig loads index settings from the environment with fallback to defaults.
func LoadConfig() *Config {
	cfg := NewConfig(config.GetEnvStr("DATABASE_URL", ""))
	cfg.MaxOpenConns = config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns)
	cfg.MaxIdleConns = config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns)
	cfg.ConnMaxLifetime = config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime)
	cfg.ConnMaxIdleTime = config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime)
	cfg.MigrationsTable = config.GetEnvStr("DATABASE_MIGRATIONS_TABLE", defaultMigrationsTable)

	return cfg
}

// NewConfig returns a Config for databaseURL with default pool settings.
func NewConfig(databaseURL string) *Config {
	return &Config{
		databaseURL:     databaseURL,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
		MigrationsTable: defaultMigrationsTable,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		return ErrInvalidPoolSize
	}

	return nil
}

// MaskDatabaseURL returns the database URL with its password replaced by "***".
func (c *Config) MaskDatabaseURL() string {
	if c.databaseURL == "" {
		return ""
	}

	u, err := url.Parse(c.databaseURL)
	if err != nil || u.User == nil {
		return c.databaseURL
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return c.databaseURL
	}

	// Rebuilt by hand so the mask is not percent-encoded.
	masked := *u
	masked.User = nil

	rest := strings.TrimPrefix(masked.String(), u.Scheme+"://")

	return u.Scheme + "://" + u.User.Username() + ":***@" + rest
}
