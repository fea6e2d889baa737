package fetch

import (
	"errors"
	"fmt"
	"time"

	"github.com/satstac/stac-sentinel/internal/config"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRPS          = 10.0
	defaultMaxBodyBytes = 64 << 20
	burstMultiplier     = 2
)

var (
	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("fetch timeout must be positive")
	// ErrInvalidRate is returned when the request rate is negative.
	ErrInvalidRate = errors.New("fetch rate must not be negative")
)

// Config holds fetcher settings.
type Config struct {
	Timeout       time.Duration // per request
	RPS           float64       // 0 disables throttling
	Burst         int           // 0 = 2 × RPS
	MaxBodyBytes  int64
	Region        string // region for s3:// URLs
	RequesterPays bool
}

// LoadConfig reads fetcher settings from the environment with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Timeout:       config.GetEnvDuration("STAC_SENTINEL_FETCH_TIMEOUT", defaultTimeout),
		RPS:           config.GetEnvFloat("STAC_SENTINEL_FETCH_RPS", defaultRPS),
		Burst:         config.GetEnvInt("STAC_SENTINEL_FETCH_BURST", 0),
		MaxBodyBytes:  config.GetEnvInt64("STAC_SENTINEL_FETCH_MAX_BYTES", defaultMaxBodyBytes),
		Region:        config.GetEnvStr("AWS_REGION", "eu-central-1"),
		RequesterPays: config.GetEnvBool("STAC_SENTINEL_REQUESTER_PAYS", true),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTimeout, c.Timeout)
	}

	if c.RPS < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, c.RPS)
	}

	return nil
}

func (c *Config) burst() int {
	if c.Burst > 0 {
		return c.Burst
	}

	if b := int(c.RPS * burstMultiplier); b > 0 {
		return b
	}

	return 1
}
