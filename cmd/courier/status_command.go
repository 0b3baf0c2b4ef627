package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, network, and queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, ctx, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func runStatus(cmd *cobra.Command, ctx *commandContext, jsonOutput bool) error {
	summary, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, summary)
	}
	renderStatusSummary(cmd, summary)
	return nil
}

func renderStatusSummary(cmd *cobra.Command, summary api.StatusSummary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := make([]string, 0, 24)

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if summary.Running {
		lines = append(lines, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d, version %s", summary.PID, summary.Version), colorize))
		if summary.StartedAt != "" {
			lines = append(lines, renderStatusLine("Started", statusInfo, formatDisplayTime(summary.StartedAt), colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("Running", statusWarn, "daemon not running", colorize))
	}
	if summary.Degraded {
		lines = append(lines, renderStatusLine("Store", statusWarn, "degraded; queued requests will not survive a restart", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Network", colorize)...)
	lines = append(lines, connectivityLine(summary, colorize))
	if summary.Running {
		lines = append(lines, renderStatusLine("Netlink", statusInfo, netlinkMessage(summary.Network.NetlinkActive), colorize))
	}
	if summary.Network.ProbeURL != "" {
		lines = append(lines, renderStatusLine("Probe", statusInfo, fmt.Sprintf("%s every %ds", summary.Network.ProbeURL, summary.Network.PollSeconds), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Storage", colorize)...)
	if summary.StorePath != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, summary.StorePath, colorize))
	}
	if summary.SocketPath != "" {
		lines = append(lines, renderStatusLine("Socket", statusInfo, summary.SocketPath, colorize))
	}
	if summary.Cache != nil {
		lines = append(lines, renderStatusLine("Cache", statusInfo, fmt.Sprintf("%d entries, %d bytes used", summary.Cache.Entries, summary.Cache.UsedBytes), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Queue", colorize)...)
	lines = append(lines, queueDepthLine(summary, colorize))

	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if len(summary.DepthByClass) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Class", "Pending"}, buildDepthRows(summary.DepthByClass), []columnAlignment{alignLeft, alignRight}))
	}
}

func connectivityLine(summary api.StatusSummary, colorize bool) string {
	network := summary.Network
	switch {
	case network.Online:
		message := "online"
		if network.Since != "" {
			message = fmt.Sprintf("online since %s", formatDisplayTime(network.Since))
		}
		return renderStatusLine("Connectivity", statusOK, message, colorize)
	case summary.Running:
		message := "offline"
		if network.Since != "" {
			message = fmt.Sprintf("offline since %s", formatDisplayTime(network.Since))
		}
		return renderStatusLine("Connectivity", statusWarn, message, colorize)
	default:
		return renderStatusLine("Connectivity", statusInfo, "unknown (daemon not running)", colorize)
	}
}

// queueDepthLine treats pending work while online as a warning since a
// healthy daemon should be draining it, and as plain information while
// offline where queueing is the expected behavior.
func queueDepthLine(summary api.StatusSummary, colorize bool) string {
	if summary.QueueDepth == 0 {
		return renderStatusLine("Pending", statusOK, "queue is empty", colorize)
	}
	message := fmt.Sprintf("%d pending", summary.QueueDepth)
	if summary.Running && summary.Network.Online {
		return renderStatusLine("Pending", statusWarn, message, colorize)
	}
	return renderStatusLine("Pending", statusInfo, message+" (waiting for connectivity)", colorize)
}

func netlinkMessage(active bool) string {
	if active {
		return "link events active"
	}
	return "polling only"
}
