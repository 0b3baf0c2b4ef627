package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "courier",
		Short:         "Offline-first HTTP request queue",
		Long:          "Courier queues HTTP requests while offline and delivers them when connectivity returns.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to daemon control socket")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(
		newDaemonCommand(ctx),
		newStatusCommand(ctx),
		newQueueCommand(ctx),
		newSubmitCommand(ctx),
		newEnqueueCommand(ctx),
		newCacheCommand(ctx),
		newNetCommand(ctx),
		newConfigCommand(ctx),
		newNotifyCommand(ctx),
	)

	return rootCmd
}
