package config

import (
	"time"

	"tunnelctl/internal/ports"
)

// Config is the top-level configuration structure for tunnelctl.
type Config struct {
	StateDir      string `yaml:"stateDir,omitempty"`      // Directory holding {context}.pid and {context}.network
	SSHConfigPath string `yaml:"sshConfigPath,omitempty"` // OpenSSH client config used to resolve aliases
	SSHBinary     string `yaml:"sshBinary,omitempty"`     // ssh executable
	InventoryPath string `yaml:"inventoryPath,omitempty"` // Directory with {company}_hosts.yml files
	Kubeconfig    string `yaml:"kubeconfig,omitempty"`    // Empty: KUBECONFIG, then ~/.kube/config
	LogFile       string `yaml:"logFile,omitempty"`       // Optional file receiving a copy of the log
	LogLevel      string `yaml:"logLevel,omitempty"`      // debug, info, warn or error; --debug wins

	PortRange ports.Range     `yaml:"portRange,omitempty"`
	Cluster   ClusterSettings `yaml:"cluster,omitempty"`
	Network   NetworkSettings `yaml:"network,omitempty"`
	Timeouts  Timeouts        `yaml:"timeouts,omitempty"`
	Update    UpdateSettings  `yaml:"update,omitempty"`
}

// ClusterSettings describe the remote k3s API servers.
type ClusterSettings struct {
	APIPort              int    `yaml:"apiPort,omitempty"`
	RemoteKubeconfigPath string `yaml:"remoteKubeconfigPath,omitempty"`
}

// NetworkSettings drive network requirement classification.
type NetworkSettings struct {
	RoutingGateway string   `yaml:"routingGateway,omitempty"` // sshuttle remote, e.g. "ops@100.64.5.10"
	RoutingCommand string   `yaml:"routingCommand,omitempty"` // Template with {gateway} and {range}
	OverlayRanges  []string `yaml:"overlayRanges,omitempty"`  // CIDRs only reachable through sshuttle
}

// Timeouts bound every blocking operation.
type Timeouts struct {
	Spawn        time.Duration `yaml:"spawn,omitempty"`
	SettleDelay  time.Duration `yaml:"settleDelay,omitempty"`
	ContextQuery time.Duration `yaml:"contextQuery,omitempty"`
	Fetch        time.Duration `yaml:"fetch,omitempty"`
	RoutingProbe time.Duration `yaml:"routingProbe,omitempty"`
	Reachability time.Duration `yaml:"reachability,omitempty"`
}

// UpdateSettings configure self-update.
type UpdateSettings struct {
	Repository string `yaml:"repository,omitempty"` // "owner/name" on GitHub
}
