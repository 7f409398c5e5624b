package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tunnelctl/internal/color"
	"tunnelctl/internal/network"
	"tunnelctl/pkg/logging"
)

func newNetworkCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "network",
		Short: "Check VPN and sshuttle requirements of tunnels",
	}
	c.AddCommand(newNetworkCheckCmd())
	return c
}

func newNetworkCheckCmd() *cobra.Command {
	var probe bool

	c := &cobra.Command{
		Use:   "check [context...]",
		Short: "Validate recorded network requirements",
		Long: `Checks whether the network requirements recorded at connect time are
currently met: a VPN requirement is always reported, an sshuttle
requirement is met when a matching sshuttle process is running.

Without arguments every recorded context is checked. With --probe the
cluster's internal address is also dialled directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()

			names := args
			if len(names) == 0 {
				if names, err = svc.Store.ListContexts(); err != nil {
					return err
				}
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tunnels recorded")
				return nil
			}

			out := cmd.OutOrStdout()
			unmet := 0
			for _, name := range names {
				res := svc.Validator.ValidateContext(cmd.Context(), name)
				if err := res.AsError(); err != nil {
					unmet++
					logging.Debug("CLI", "Network check: %v", err)
				}
				switch {
				case res.Err != nil:
					fmt.Fprintf(out, "%s %v\n", color.WarningStyle.Render(color.SafeIcon("?")+name), res.Err)
				case res.Satisfied:
					fmt.Fprintln(out, color.SuccessStyle.Render(color.SafeIcon("✓")+name))
				default:
					fmt.Fprintf(out, "%s %s\n", color.ErrorStyle.Render(color.SafeIcon("✗")+name), res.Warning)
				}

				if probe && res.Metadata != nil && res.Metadata.InternalIP != nil {
					ip := *res.Metadata.InternalIP
					reachable := network.ProbeReachable(cmd.Context(), ip, svc.Config.Cluster.APIPort, svc.Config.Timeouts.Reachability)
					fmt.Fprintf(out, "    %s:%d reachable: %t\n", ip, svc.Config.Cluster.APIPort, reachable)
				}
			}

			if unmet > 0 {
				return fmt.Errorf("%d of %d contexts have unmet network requirements", unmet, len(names))
			}
			return nil
		},
	}
	c.Flags().BoolVar(&probe, "probe", false, "also dial the cluster's internal address")
	return c
}
