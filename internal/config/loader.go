package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tunnelctl/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/tunnelctl"
	projectConfigDir = ".tunnelctl"
	configFileName   = "config.yaml"

	// StateDirEnv overrides stateDir.
	StateDirEnv = "TUNNELCTL_STATE_DIR"
)

// LoadConfig loads the tunnelctl configuration by layering default, user,
// project and (when explicitPath is not empty) explicit settings.
func LoadConfig(explicitPath string) (Config, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else if config, err = overlayFile(config, userConfigPath, false); err != nil {
		return Config{}, err
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else if config, err = overlayFile(config, projectConfigPath, false); err != nil {
		return Config{}, err
	}

	if explicitPath != "" {
		if config, err = overlayFile(config, explicitPath, true); err != nil {
			return Config{}, err
		}
	}

	if dir := os.Getenv(StateDirEnv); dir != "" {
		config.StateDir = dir
	}

	if err := config.expandPaths(); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func overlayFile(base Config, path string, required bool) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if required {
			return Config{}, fmt.Errorf("config file %s does not exist", path)
		}
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Debug("Config", "Loaded config layer %s", path)
	return mergeConfigs(base, overlay), nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	var config Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Non-zero overlay
// fields win.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	setString(&merged.StateDir, overlay.StateDir)
	setString(&merged.SSHConfigPath, overlay.SSHConfigPath)
	setString(&merged.SSHBinary, overlay.SSHBinary)
	setString(&merged.InventoryPath, overlay.InventoryPath)
	setString(&merged.Kubeconfig, overlay.Kubeconfig)
	setString(&merged.LogFile, overlay.LogFile)
	setString(&merged.LogLevel, overlay.LogLevel)

	if overlay.PortRange.Start != 0 {
		merged.PortRange.Start = overlay.PortRange.Start
	}
	if overlay.PortRange.Size != 0 {
		merged.PortRange.Size = overlay.PortRange.Size
	}

	if overlay.Cluster.APIPort != 0 {
		merged.Cluster.APIPort = overlay.Cluster.APIPort
	}
	setString(&merged.Cluster.RemoteKubeconfigPath, overlay.Cluster.RemoteKubeconfigPath)

	setString(&merged.Network.RoutingGateway, overlay.Network.RoutingGateway)
	setString(&merged.Network.RoutingCommand, overlay.Network.RoutingCommand)
	if overlay.Network.OverlayRanges != nil {
		merged.Network.OverlayRanges = append([]string(nil), overlay.Network.OverlayRanges...)
	}

	t, o := &merged.Timeouts, overlay.Timeouts
	if o.Spawn != 0 {
		t.Spawn = o.Spawn
	}
	if o.SettleDelay != 0 {
		t.SettleDelay = o.SettleDelay
	}
	if o.ContextQuery != 0 {
		t.ContextQuery = o.ContextQuery
	}
	if o.Fetch != 0 {
		t.Fetch = o.Fetch
	}
	if o.RoutingProbe != 0 {
		t.RoutingProbe = o.RoutingProbe
	}
	if o.Reachability != 0 {
		t.Reachability = o.Reachability
	}

	setString(&merged.Update.Repository, overlay.Update.Repository)
	return merged
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.StateDir, &c.SSHConfigPath, &c.InventoryPath, &c.Kubeconfig, &c.LogFile} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if c.StateDir == "" {
		return errors.New("stateDir must not be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.PortRange.Size <= 0 {
		return fmt.Errorf("portRange.size must be positive, got %d", c.PortRange.Size)
	}
	if c.PortRange.Start < 1 || c.PortRange.Start+c.PortRange.Size-1 > 65535 {
		return fmt.Errorf("portRange %d+%d leaves 1-65535", c.PortRange.Start, c.PortRange.Size)
	}
	if c.Cluster.APIPort < 1 || c.Cluster.APIPort > 65535 {
		return fmt.Errorf("cluster.apiPort %d is not a valid port", c.Cluster.APIPort)
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
