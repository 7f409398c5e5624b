package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tunnelctl/internal/network"
)

func newInventoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect the host inventory",
	}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List hosts with their context, port and network requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()

			inv, err := svc.LoadInventory()
			if err != nil {
				return err
			}
			if len(inv.Hosts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No hosts found in %s\n", svc.Config.InventoryPath)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HOST\tCONTEXT\tSSH\tADDRESS\tPORT\tNETWORK")
			for _, h := range inv.Hosts {
				req := svc.Classifier.Classify(network.Host{NeedsVPN: h.NeedsVPN, Address: h.InternalIP})
				label := req.Label()
				if label == "" {
					label = "direct"
				}
				addr := h.InternalIP
				if addr == "" {
					addr = "-"
				}
				target := "-"
				if e, err := svc.SSH.Resolve(h.Alias); err == nil {
					target = e.HostName
					if e.User != "" {
						target = e.User + "@" + target
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", h.Selector(), h.Context(), target, addr, svc.Tunnels.Port(h.Context()), label)
			}
			return w.Flush()
		},
	})
	return c
}
