package cmd

import (
	"github.com/spf13/cobra"

	"tunnelctl/internal/mcptools"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve tunnel operations as MCP tools over stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing
tunnel_status, tunnel_connect, tunnel_kill, tunnel_kill_all,
network_validate and context_current.

Logs go to stderr (and logFile when configured) so they never mix with
the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()
			return mcptools.ServeStdio(svc.MCPTools(), rootCmd.Version)
		},
	}
}
