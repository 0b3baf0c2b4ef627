package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/ipc"
)

func newNetCommand(ctx *commandContext) *cobra.Command {
	netCmd := &cobra.Command{
		Use:   "net",
		Short: "Inspect connectivity state",
	}
	netCmd.AddCommand(newNetStatusCommand(ctx))
	return netCmd
}

func newNetStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the connectivity monitor state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.NetworkStatus()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Network)
				}
				out := cmd.OutOrStdout()
				network := resp.Network
				if network.Online {
					fmt.Fprintln(out, "Online: yes")
				} else {
					fmt.Fprintln(out, "Online: no")
				}
				if network.Since != "" {
					fmt.Fprintf(out, "Since: %s\n", formatDisplayTime(network.Since))
				}
				fmt.Fprintf(out, "Netlink monitoring: %s\n", yesNo(network.NetlinkActive))
				if network.ProbeURL != "" {
					fmt.Fprintf(out, "Probe URL: %s\n", network.ProbeURL)
				}
				fmt.Fprintf(out, "Poll interval: %ds\n", network.PollSeconds)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}
