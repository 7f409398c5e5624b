package cmd

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tunnelctl/internal/app"
	"tunnelctl/internal/color"
)

var (
	configPath string
	stateDir   string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tunnelctl",
	Short: "Manage SSH tunnels to remote k3s API servers",
	Long: `tunnelctl exposes Kubernetes API servers that sit behind private networks
on deterministic local ports. Each cluster gets an SSH port-forward, a
kubeconfig context pointing at it, and an entry in the state directory
so later invocations can report on, reuse and tear down the tunnel.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. unknown hosts, failed connections)
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		color.Initialize(lipgloss.HasDarkBackground())
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tunnelctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

// newApplication is replaced in tests.
var newApplication = app.NewApplication

// loadServices bootstraps the application for one command.
func loadServices() (*app.Application, *app.Services, error) {
	a, err := newApplication(app.NewConfig(configPath, stateDir, debug))
	if err != nil {
		return nil, nil, err
	}
	return a, a.Services(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file layered over ~/.config/tunnelctl/config.yaml and ./.tunnelctl/config.yaml")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "tunnel state directory (overrides stateDir and TUNNELCTL_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTunnelCmd())
	rootCmd.AddCommand(newNetworkCmd())
	rootCmd.AddCommand(newInventoryCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
