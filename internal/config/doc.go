// Package config provides configuration management for tunnelctl.
//
// Configuration is loaded from multiple YAML sources and merged in order,
// later sources overriding earlier ones field by field:
//
//  1. Default configuration (built into the binary)
//  2. User configuration (~/.config/tunnelctl/config.yaml)
//  3. Project configuration (./.tunnelctl/config.yaml)
//  4. An explicit file passed with --config
//
// Finally TUNNELCTL_STATE_DIR, when set, replaces stateDir.
//
// # Configuration Structure
//
//	stateDir: ~/.local/state/tunnelctl-tunnels
//	sshConfigPath: ~/.ssh/config
//	sshBinary: ssh
//	inventoryPath: ./inventory
//	kubeconfig: ""
//	logFile: ""
//	portRange:
//	  start: 16443
//	  size: 10000
//	cluster:
//	  apiPort: 6443
//	  remoteKubeconfigPath: /etc/rancher/k3s/k3s.yaml
//	network:
//	  routingGateway: ops@100.64.5.10
//	  routingCommand: "sshuttle -v -r {gateway} {range}"
//	  overlayRanges: ["192.168.90.0/24"]
//	timeouts:
//	  spawn: 30s
//	  settleDelay: 500ms
//	  contextQuery: 5s
//	  fetch: 30s
//	  routingProbe: 2s
//	  reachability: 3s
//	update:
//	  repository: tunnelctl/tunnelctl
//
// Changing portRange moves every tunnel to a new local port, and kubeconfig
// contexts fetched earlier are refreshed on the next connect.
//
// Paths starting with "~/" are expanded against the user's home directory.
package config
