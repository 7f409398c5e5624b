package app

import (
	"fmt"
	"path/filepath"

	"tunnelctl/internal/config"
	"tunnelctl/internal/connect"
	"tunnelctl/internal/inventory"
	"tunnelctl/internal/kube"
	"tunnelctl/internal/liveness"
	"tunnelctl/internal/mcptools"
	"tunnelctl/internal/network"
	"tunnelctl/internal/process"
	"tunnelctl/internal/sshconfig"
	"tunnelctl/internal/state"
	"tunnelctl/internal/status"
	"tunnelctl/internal/tunnel"
)

// Services holds all the initialized components
type Services struct {
	Config     config.Config
	Store      *state.Store
	Processes  process.Table
	Liveness   *liveness.Checker
	Tunnels    *tunnel.Manager
	Classifier *network.Classifier
	Validator  *network.Validator
	Kube       *kube.Kubeconfig
	Fetcher    *kube.Fetcher
	Reporter   *status.Reporter
	SSH        *sshconfig.Resolver
	Connector  *connect.Connector
}

// InitializeServices creates every component from cfg.
func InitializeServices(cfg config.Config) (*Services, error) {
	return initializeServices(cfg, process.NewSystem())
}

func initializeServices(cfg config.Config, procs process.Table) (*Services, error) {
	store := state.NewStore(cfg.StateDir)
	checker := liveness.NewChecker(store, procs)

	resolver, err := sshconfig.Load(cfg.SSHConfigPath)
	if err != nil {
		return nil, err
	}
	sshArgs := sshExtraArgs(cfg.SSHConfigPath)

	tunnels := tunnel.NewManager(store, checker, procs,
		tunnel.SSHSpawner{Binary: cfg.SSHBinary, ExtraArgs: sshArgs},
		tunnel.Options{
			PortRange:    cfg.PortRange,
			SettleDelay:  cfg.Timeouts.SettleDelay,
			SpawnTimeout: cfg.Timeouts.Spawn,
		})

	classifier, err := network.NewClassifier(cfg.Network.OverlayRanges, cfg.Network.RoutingGateway, cfg.Network.RoutingCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid network configuration: %w", err)
	}
	validator := network.NewValidator(store, procs, classifier, cfg.Timeouts.RoutingProbe)

	kc := kube.NewKubeconfig(cfg.Kubeconfig)
	fetcher := kube.NewFetcher(kc,
		kube.SSHReader{Binary: cfg.SSHBinary, ExtraArgs: sshArgs},
		cfg.Cluster.RemoteKubeconfigPath,
		cfg.Timeouts.Fetch)

	reporter := status.NewReporter(store, checker, kc, cfg.PortRange, cfg.Timeouts.ContextQuery)
	connector := connect.NewConnector(tunnels, fetcher, store, classifier, validator, kc, resolver,
		connect.Options{APIPort: cfg.Cluster.APIPort})

	return &Services{
		Config:     cfg,
		Store:      store,
		Processes:  procs,
		Liveness:   checker,
		Tunnels:    tunnels,
		Classifier: classifier,
		Validator:  validator,
		Kube:       kc,
		Fetcher:    fetcher,
		Reporter:   reporter,
		SSH:        resolver,
		Connector:  connector,
	}, nil
}

// sshExtraArgs points ssh at a non-default client config.
func sshExtraArgs(sshConfigPath string) []string {
	if sshConfigPath == "" {
		return nil
	}
	def, err := config.ExpandHome("~/.ssh/config")
	if err == nil && filepath.Clean(def) == filepath.Clean(sshConfigPath) {
		return nil
	}
	return []string{"-F", sshConfigPath}
}

// LoadInventory reads the configured inventory directory.
func (s *Services) LoadInventory() (*inventory.Inventory, error) {
	return inventory.Load(s.Config.InventoryPath)
}

// MCPTools returns the MCP tool set backed by these services.
func (s *Services) MCPTools() *mcptools.Tools {
	return mcptools.New(mcptools.Deps{
		Status:        s.Reporter,
		Tunnels:       s.Tunnels,
		Connector:     s.Connector,
		Validator:     s.Validator,
		Contexts:      s.Kube,
		LoadInventory: s.LoadInventory,
	})
}
