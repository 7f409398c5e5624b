package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tunnelctl/internal/ports"
)

// mockPaths points the user and project layers and the home directory into
// dir for the duration of the test.
func mockPaths(t *testing.T, dir string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	originalOsUserHomeDir := osUserHomeDir
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
		osUserHomeDir = originalOsUserHomeDir
	})

	osUserHomeDir = func() (string, error) { return dir, nil }
	getUserConfigPath = func() (string, error) {
		return filepath.Join(dir, userConfigDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(dir, "project", projectConfigDir, configFileName), nil
	}
	t.Setenv(StateDirEnv, "")
}

func writeYAML(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var data []byte
	switch s := v.(type) {
	case string:
		data = []byte(s)
	default:
		var err error
		data, err = yaml.Marshal(v)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	dir := t.TempDir()
	mockPaths(t, dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".local/state/tunnelctl-tunnels"), cfg.StateDir)
	assert.Equal(t, filepath.Join(dir, ".ssh/config"), cfg.SSHConfigPath)
	assert.Equal(t, ports.DefaultRange, cfg.PortRange)
	assert.Equal(t, 6443, cfg.Cluster.APIPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.ContextQuery)
}

func TestLoadConfig_LayerPrecedence(t *testing.T) {
	dir := t.TempDir()
	mockPaths(t, dir)

	writeYAML(t, filepath.Join(dir, userConfigDir, configFileName), `
sshBinary: /usr/local/bin/ssh
portRange:
  start: 20000
network:
  routingGateway: ops@100.64.5.10
  overlayRanges: ["192.168.90.0/24"]
timeouts:
  spawn: 10s
`)
	writeYAML(t, filepath.Join(dir, "project", projectConfigDir, configFileName), Config{
		SSHBinary: "/opt/ssh",
		Timeouts:  Timeouts{SettleDelay: time.Second},
	})
	explicit := filepath.Join(dir, "explicit.yaml")
	writeYAML(t, explicit, "stateDir: /var/tmp/tunnels\n")

	cfg, err := LoadConfig(explicit)
	require.NoError(t, err)

	assert.Equal(t, "/opt/ssh", cfg.SSHBinary, "project overrides user")
	assert.Equal(t, ports.Range{Start: 20000, Size: 10000}, cfg.PortRange, "fields merge individually")
	assert.Equal(t, []string{"192.168.90.0/24"}, cfg.Network.OverlayRanges)
	assert.Equal(t, "ops@100.64.5.10", cfg.Network.RoutingGateway)
	assert.Equal(t, "sshuttle -v -r {gateway} {range}", cfg.Network.RoutingCommand)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Spawn)
	assert.Equal(t, time.Second, cfg.Timeouts.SettleDelay)
	assert.Equal(t, "/var/tmp/tunnels", cfg.StateDir)
}

func TestLoadConfig_StateDirEnv(t *testing.T) {
	dir := t.TempDir()
	mockPaths(t, dir)
	t.Setenv(StateDirEnv, "~/custom-state")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom-state"), cfg.StateDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) string
	}{
		{
			name: "missing explicit file",
			setup: func(t *testing.T, dir string) string {
				return filepath.Join(dir, "absent.yaml")
			},
		},
		{
			name: "malformed user file",
			setup: func(t *testing.T, dir string) string {
				writeYAML(t, filepath.Join(dir, userConfigDir, configFileName), "portRange: [1, 2")
				return ""
			},
		},
		{
			name: "port range past 65535",
			setup: func(t *testing.T, dir string) string {
				p := filepath.Join(dir, "range.yaml")
				writeYAML(t, p, "portRange: {start: 60000, size: 10000}\n")
				return p
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			mockPaths(t, dir)
			_, err := LoadConfig(tt.setup(t, dir))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.PortRange = ports.Range{Start: 1024, Size: 0}
	assert.Error(t, cfg.Validate())

	cfg = GetDefaultConfig()
	cfg.Cluster.APIPort = 70000
	assert.Error(t, cfg.Validate())

	cfg = GetDefaultConfig()
	cfg.LogLevel = "chatty"
	assert.Error(t, cfg.Validate())
}

func TestExpandHome(t *testing.T) {
	dir := t.TempDir()
	mockPaths(t, dir)

	got, err := ExpandHome("~/x/y")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x/y"), got)

	got, err = ExpandHome("/abs/~/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/~/path", got)
}
