package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/ipc"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification helpers",
	}
	notifyCmd.AddCommand(newNotifyTestCommand(ctx))
	return notifyCmd
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification with the daemon's settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					return nil
				}
				if resp.Sent {
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				return nil
			})
		},
	}
}
