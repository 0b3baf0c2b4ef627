package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/daemonctl"
	"courier/internal/daemonrun"
)

const (
	daemonStartTimeout  = 10 * time.Second
	daemonStopGrace     = 5 * time.Second
	daemonRestartGrace  = 5 * time.Second
	daemonRestartWindow = 10 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the courier daemon",
	}
	daemonCmd.AddCommand(
		newDaemonStartCommand(ctx),
		newDaemonStopCommand(ctx),
		newDaemonRestartCommand(ctx),
		newDaemonStatusCommand(ctx),
		newDaemonRunCommand(ctx),
	)
	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executable, err := daemonExecutable()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), executable, daemonLaunchOptions(ctx), daemonStartTimeout)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(out, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(out, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(out, "Daemon already running")
			}
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), daemonStopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintln(out, "Stopping daemon...")
			} else {
				fmt.Fprintln(out, "Stop request sent")
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executable, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.socketPath(), ctx.configValue(), executable, daemonLaunchOptions(ctx), daemonRestartGrace, daemonRestartWindow)
			if err != nil {
				return err
			}
			if result.WasRunning {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon restarted")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon started")
			}
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, ctx, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not loaded")
			}
			if ctx.socketFlag != nil {
				if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
					cfg.Paths.Socket = socket
				}
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath: ctx.resolvedConfigPath(),
				LogLevel:   logLevel,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		opts.SocketPath = strings.TrimSpace(*ctx.socketFlag)
	}
	if ctx.configFlag != nil {
		opts.ConfigPath = strings.TrimSpace(*ctx.configFlag)
	}
	return opts
}

func daemonExecutable() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return executable, nil
}
