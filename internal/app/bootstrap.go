package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tunnelctl/internal/config"
	"tunnelctl/pkg/logging"
)

// Application is the main application structure that bootstraps tunnelctl
type Application struct {
	config   *Config
	services *Services
	logFile  *os.File
}

// NewApplication loads configuration, configures logging and initializes
// services.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelWarn
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, os.Stderr)

	tunnelCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load tunnelctl configuration")
		return nil, fmt.Errorf("failed to load tunnelctl configuration: %w", err)
	}
	if !cfg.Debug {
		// logLevel was validated by LoadConfig.
		appLogLevel, _ = logging.ParseLevel(tunnelCfg.LogLevel)
		logging.InitForCLI(appLogLevel, os.Stderr)
	}
	if cfg.StateDir != "" {
		if tunnelCfg.StateDir, err = config.ExpandHome(cfg.StateDir); err != nil {
			return nil, err
		}
	}
	cfg.TunnelConfig = &tunnelCfg

	a := &Application{config: cfg}
	if tunnelCfg.LogFile != "" {
		f, err := openLogFile(tunnelCfg.LogFile)
		if err != nil {
			logging.Warn("Bootstrap", "Cannot open log file %s: %v", tunnelCfg.LogFile, err)
		} else {
			a.logFile = f
			logging.InitForCLI(appLogLevel, io.MultiWriter(os.Stderr, f))
		}
	}

	services, err := InitializeServices(tunnelCfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		a.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.services = services
	logging.Debug("Bootstrap", "State directory %s, inventory %s", tunnelCfg.StateDir, tunnelCfg.InventoryPath)
	return a, nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Close releases the log file.
func (a *Application) Close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
