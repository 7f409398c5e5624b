package app

import (
	"tunnelctl/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is an explicit config file layered on top of the defaults.
	ConfigPath string

	// StateDir overrides the configured state directory when not empty.
	StateDir string

	// Debug settings
	Debug bool

	// Loaded tunnelctl configuration
	TunnelConfig *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(configPath, stateDir string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		StateDir:   stateDir,
		Debug:      debug,
	}
}
