package collections

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/satstac/stac-sentinel/internal/config"
)

// Settings holds per-collection endpoint overrides loaded from .stac-sentinel.yaml.
//
// Example:
//
//	collections:
//	  sentinel-s2-l1c:
//	    metadata_url: https://mirror.example.com/sentinel-s2-l1c
//	    asset_url: s3://my-copy-of-sentinel-s2-l1c
type Settings struct {
	Collections map[string]Endpoints `yaml:"collections"`
}

// DefaultSettingsPath is the default location of the settings file.
const DefaultSettingsPath = ".stac-sentinel.yaml"

// SettingsPathEnvVar is the environment variable name for a custom settings path.
const SettingsPathEnvVar = "STAC_SENTINEL_CONFIG_PATH"

// LoadSettings reads endpoint overrides from a YAML file.
//
// Behavior:
//   - Returns empty settings (not error) if the file doesn't exist
//   - Returns empty settings + logs warning if the file can't be read or the YAML is invalid
//   - Returns populated settings on success
func LoadSettings(path string) (*Settings, error) {
	settings := &Settings{Collections: make(map[string]Endpoints)}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Settings file not found, using built-in endpoints",
				slog.String("path", path))

			return settings, nil
		}

		slog.Warn("Failed to read settings file, using built-in endpoints",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return settings, nil
	}

	if len(data) == 0 {
		return settings, nil
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		slog.Warn("Failed to parse settings file, using built-in endpoints",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &Settings{Collections: make(map[string]Endpoints)}, nil
	}

	if settings.Collections == nil {
		settings.Collections = make(map[string]Endpoints)
	}

	return settings, nil
}

// LoadSettingsFromEnv loads settings from the path in STAC_SENTINEL_CONFIG_PATH,
// falling back to ".stac-sentinel.yaml" in the current directory.
func LoadSettingsFromEnv() (*Settings, error) {
	return LoadSettings(config.GetEnvStr(SettingsPathEnvVar, DefaultSettingsPath))
}
