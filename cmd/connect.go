package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tunnelctl/internal/color"
	"tunnelctl/internal/connect"
)

func newConnectCmd() *cobra.Command {
	var sel connect.Selection

	c := &cobra.Command{
		Use:   "connect [company:host | context ...]",
		Short: "Create tunnels and kubeconfig contexts for inventory hosts",
		Long: `Connects to one or more clusters from the inventory, in the order given.

For every host tunnelctl fetches the k3s kubeconfig over ssh (unless an
up to date context already exists), starts an ssh port-forward on the
host's deterministic local port and records network requirements such as
VPN or sshuttle. Tunnels that are already running are reused.

The first cluster that connects becomes the current kubeconfig context.

Examples:
  tunnelctl connect acme:prod1
  tunnelctl connect acme-prod1 beta:edge1
  tunnelctl connect --company acme
  tunnelctl connect --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel.Args = args
			return runConnect(cmd, sel)
		},
	}
	c.Flags().BoolVar(&sel.All, "all", false, "connect every host in the inventory")
	c.Flags().StringVar(&sel.Company, "company", "", "connect every host of a company")
	return c
}

func runConnect(cmd *cobra.Command, sel connect.Selection) error {
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
		return fmt.Errorf("%w: inventory %s has no hosts", connect.ErrNoTargets, svc.Config.InventoryPath)
	}
	hosts, err := connect.Select(inv, sel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, h := range hosts {
		if h.NeedsVPN {
			fmt.Fprintln(out, color.WarningStyle.Render(fmt.Sprintf("%s requires VPN; make sure it is connected", h.Context())))
		}
	}

	sum, err := svc.Connector.Connect(cmd.Context(), hosts)
	if err != nil {
		return err
	}
	printSummary(out, sum)

	if len(sum.Succeeded()) == 0 {
		return errors.New("no clusters connected")
	}
	return nil
}

func printSummary(out io.Writer, sum connect.Summary) {
	for _, r := range sum.Results {
		if !r.OK() {
			fmt.Fprintf(out, "%s %s\n", color.ErrorStyle.Render(color.SafeIcon("✗")+r.Context), r.Err)
			continue
		}
		detail := "tunnel created"
		if r.Reused {
			detail = "tunnel already running"
		}
		if r.PID > 0 {
			detail += fmt.Sprintf(", pid %d", r.PID)
		}
		if r.KubeconfigCached {
			detail += ", cached kubeconfig"
		}
		fmt.Fprintf(out, "%s localhost:%d (%s)\n", color.SuccessStyle.Render(color.SafeIcon("✓")+r.Context), r.Port, detail)
		if r.NetworkWarning != "" {
			fmt.Fprintf(out, "    %s\n", color.WarningStyle.Render(r.NetworkWarning))
		}
	}

	fmt.Fprintf(out, "\nConnected %d of %d clusters", len(sum.Succeeded()), len(sum.Results))
	if failed := sum.Failed(); len(failed) > 0 {
		fmt.Fprintf(out, ", %d failed", len(failed))
	}
	fmt.Fprintln(out)

	switch {
	case sum.Active != "":
		fmt.Fprintf(out, "Current context: %s\n", color.AccentStyle.Render(sum.Active))
		fmt.Fprintln(out, color.MutedStyle.Render("Switch with: kubectl config use-context <name>"))
	case sum.ActivateErr != nil:
		fmt.Fprintf(out, "%s\n", color.WarningStyle.Render("Could not switch context: "+sum.ActivateErr.Error()))
	}
}
