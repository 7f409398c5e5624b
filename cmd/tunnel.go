package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tunnelctl/internal/config"
	"tunnelctl/internal/ports"
)

func newTunnelCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "tunnel",
		Short: "Inspect and tear down tunnels",
	}
	c.AddCommand(newTunnelListCmd())
	c.AddCommand(newTunnelKillCmd())
	c.AddCommand(newTunnelKillAllCmd())
	c.AddCommand(newTunnelPortCmd())
	return c
}

func newTunnelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded tunnels in a script friendly table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := svc.Reporter.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTEXT\tSTATE\tPORT\tPID")
			for _, e := range entries {
				pid := "-"
				if e.PID > 0 {
					pid = fmt.Sprint(e.PID)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Name, e.State, e.Port, pid)
			}
			return w.Flush()
		},
	}
}

func newTunnelKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <context...>",
		Short: "Kill tunnels and remove their state",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()

			var errs []error
			for _, name := range args {
				found, err := svc.Tunnels.Kill(cmd.Context(), name)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
					continue
				}
				if !found {
					fmt.Fprintf(cmd.OutOrStdout(), "No tunnel recorded for %s\n", name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Killed %s\n", name)
			}
			return errors.Join(errs...)
		},
	}
}

func newTunnelKillAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill-all",
		Short: "Kill every recorded tunnel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := loadServices()
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := svc.Tunnels.KillAll(cmd.Context())
			if len(names) == 0 && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No tunnels recorded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Killed %d tunnels\n", len(names))
			return err
		},
	}
}

func newTunnelPortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "port <context...>",
		Short: "Print the local port assigned to contexts",
		Long: `Prints the deterministic local port of each context. Nothing is
started and no state is read; the port only depends on the context name
and the configured port range.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			for _, name := range args {
				if len(args) == 1 {
					fmt.Fprintln(cmd.OutOrStdout(), ports.Allocate(name, cfg.PortRange))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, ports.Allocate(name, cfg.PortRange))
			}
			return nil
		},
	}
}
