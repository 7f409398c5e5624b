package config

import (
	"time"

	"tunnelctl/internal/ports"
)

// GetDefaultConfig returns the built-in configuration. Paths may start with
// "~" and are expanded by LoadConfig.
func GetDefaultConfig() Config {
	return Config{
		StateDir:      "~/.local/state/tunnelctl-tunnels",
		SSHConfigPath: "~/.ssh/config",
		SSHBinary:     "ssh",
		InventoryPath: "./inventory",
		LogLevel:      "warn",
		PortRange:     ports.DefaultRange,
		Cluster: ClusterSettings{
			APIPort:              6443,
			RemoteKubeconfigPath: "/etc/rancher/k3s/k3s.yaml",
		},
		Network: NetworkSettings{
			RoutingCommand: "sshuttle -v -r {gateway} {range}",
		},
		Timeouts: Timeouts{
			Spawn:        30 * time.Second,
			SettleDelay:  500 * time.Millisecond,
			ContextQuery: 5 * time.Second,
			Fetch:        30 * time.Second,
			RoutingProbe: 2 * time.Second,
			Reachability: 3 * time.Second,
		},
		Update: UpdateSettings{
			Repository: "tunnelctl/tunnelctl",
		},
	}
}
