package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/ipc"
)

// requestFlags collects the submit/enqueue request-shaping flags.
type requestFlags struct {
	method     string
	headers    []string
	body       string
	bodyFile   string
	class      string
	maxRetries int
}

func addRequestFlags(cmd *cobra.Command, flags *requestFlags) {
	cmd.Flags().StringVarP(&flags.method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "Request header as \"Name: value\" (repeatable)")
	cmd.Flags().StringVarP(&flags.body, "body", "d", "", "Request body")
	cmd.Flags().StringVar(&flags.bodyFile, "body-file", "", "Read request body from file")
	cmd.Flags().StringVar(&flags.class, "class", "", "Request class (defaults to \"default\")")
	cmd.Flags().IntVar(&flags.maxRetries, "max-retries", -1, "Delivery attempts before the request is dropped (-1 uses the configured default)")
}

func (f *requestFlags) materialize() (map[string]string, []byte, error) {
	headers, err := parseHeaderFlags(f.headers)
	if err != nil {
		return nil, nil, err
	}
	body, err := resolveBody(f.body, f.bodyFile)
	if err != nil {
		return nil, nil, err
	}
	return headers, body, nil
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags requestFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Deliver a request now, queueing it when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, body, err := flags.materialize()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
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
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				switch {
				case resp.Delivered:
					fmt.Fprintf(out, "Delivered: HTTP %d\n", resp.StatusCode)
					if len(resp.Body) > 0 {
						out.Write(resp.Body)
						if resp.Body[len(resp.Body)-1] != '\n' {
							fmt.Fprintln(out)
						}
					}
				case resp.Queued:
					fmt.Fprintf(out, "Delivery failed; queued as request %d\n", resp.RequestID)
				default:
					fmt.Fprintln(out, "Request was not delivered")
				}
				return nil
			})
		},
	}

	addRequestFlags(cmd, &flags)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}
