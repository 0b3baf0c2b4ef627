package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var flags requestFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "enqueue <url>",
		Short: "Store a request for background delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, body, err := flags.materialize()
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var item api.QueueItem
				if client != nil {
					resp, err := client.Enqueue(ipc.EnqueueRequest{
						URL:        args[0],
						Method:     flags.method,
						Headers:    headers,
						Body:       body,
						Class:      flags.class,
						MaxRetries: flags.maxRetries,
					})
					if err != nil {
						return err
					}
					item = resp.Item
				} else {
					cfg := ctx.configValue()
					req, err := buildQueueRequest(args[0], flags.method, headers, body, flags.class, flags.maxRetries, cfg.Sync.DefaultMaxRetries)
					if err != nil {
						return err
					}
					stored, err := store.Add(cmd.Context(), req)
					if err != nil {
						return err
					}
					item = api.FromRequest(stored)
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued request %d (%s %s, class %s)\n", item.ID, item.Method, item.URL, item.Class)
				return nil
			})
		},
	}

	addRequestFlags(cmd, &flags)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

// buildQueueRequest validates the URL and shapes a storable request for
// the direct-store path, matching what the daemon would have stored.
func buildQueueRequest(rawURL, method string, headers map[string]string, body []byte, class string, maxRetries, defaultMaxRetries int) (*queue.Request, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("url does not parse: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("url host is required")
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &queue.Request{
		Class:      queue.NormalizeClass(class),
		URL:        trimmed,
		Method:     queue.NormalizeMethod(method),
		Headers:    headers,
		Body:       body,
		MaxRetries: maxRetries,
	}, nil
}
