package cmd

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"tunnelctl/internal/status"
)

func newStatusCmd() *cobra.Command {
	var output string
	var copyCommands bool

	c := &cobra.Command{
		Use:   "status",
		Short: "Show every recorded tunnel and whether it is running",
		Long: `Reconciles the state directory with the running processes and prints
each tunnel's state, local port and network requirements. Records of
tunnels whose process is gone are cleaned up on the way.

With --copy the sshuttle commands needed by running tunnels are copied to
the clipboard.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unsupported output format %q (use text or json)", output)
			}
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := svc.Reporter.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			if copyCommands && len(snap.RoutingCommands) > 0 {
				if err := clipboard.WriteAll(strings.Join(snap.RoutingCommands, "\n")); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not copy to clipboard: %v\n", err)
				} else if output == "text" {
					defer fmt.Fprintln(cmd.OutOrStdout(), "Routing commands copied to clipboard.")
				}
			}

			if output == "json" {
				return status.RenderJSON(cmd.OutOrStdout(), snap)
			}
			return status.Render(cmd.OutOrStdout(), snap, status.RenderOptions{ShowCommands: true})
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	c.Flags().BoolVar(&copyCommands, "copy", false, "copy required sshuttle commands to the clipboard")
	return c
}
