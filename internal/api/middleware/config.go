package middleware

import (
	"time"

	"github.com/satstac/stac-sentinel/internal/config"
)

// Config holds rate limiter configuration.
//
// Burst capacity allows temporary bursts above sustained rate.
// If burst fields are 0, they are computed automatically as 2 × rate.
type Config struct {
	GlobalRPS int // Default: 100
	ClientRPS int // Default: 10

	GlobalBurst int
	ClientBurst int

	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxClients      int           // Default: 10,000
}

// LoadConfig loads middleware config from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS: config.GetEnvInt("STAC_SENTINEL_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS: config.GetEnvInt("STAC_SENTINEL_CLIENT_RPS", defaultClientRPS),

		GlobalBurst: config.GetEnvInt("STAC_SENTINEL_GLOBAL_BURST", 0),
		ClientBurst: config.GetEnvInt("STAC_SENTINEL_CLIENT_BURST", 0),

		CleanupInterval: config.GetEnvDuration(
			"STAC_SENTINEL_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout: config.GetEnvDuration("STAC_SENTINEL_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxClients:  config.GetEnvInt("STAC_SENTINEL_RATE_LIMIT_MAX_CLIENTS", defaultMaxClients),
	}
}
