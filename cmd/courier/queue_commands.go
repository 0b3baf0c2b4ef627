package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage pending requests",
	}
	queueCmd.AddCommand(
		newQueueListCommand(ctx),
		newQueueDepthCommand(ctx),
		newQueueClearCommand(ctx),
		newQueueRemoveCommand(ctx),
		newQueueFlushCommand(ctx),
		newQueueHealthCommand(ctx),
	)
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var classes []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var items []api.QueueItem
				if client != nil {
					resp, err := client.QueueList(classes)
					if err != nil {
						return err
					}
					items = resp.Items
				} else {
					reqs, err := store.List(cmd.Context(), classes...)
					if err != nil {
						return err
					}
					items = api.FromRequests(reqs)
				}
				if jsonOutput {
					if items == nil {
						items = []api.QueueItem{}
					}
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					if len(classes) > 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No pending requests in the selected classes")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					}
					return nil
				}
				headers := []string{"ID", "Class", "Method", "URL", "Attempts", "Enqueued", "Last Error"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildQueueListRows(items), aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&classes, "class", nil, "Limit output to a request class (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueDepthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "depth",
		Short: "Show pending request counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var total int
				var byClass map[string]int
				if client != nil {
					resp, err := client.QueueDepth()
					if err != nil {
						return err
					}
					total = resp.Total
					byClass = resp.ByClass
				} else {
					var err error
					total, err = store.CountPending(cmd.Context())
					if err != nil {
						return err
					}
					byClass, err = store.CountByClass(cmd.Context())
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, api.DepthResponse{Total: total, ByClass: byClass})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pending requests: %d\n", total)
				if len(byClass) > 0 {
					headers := []string{"Class", "Pending"}
					aligns := []columnAlignment{alignLeft, alignRight}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildDepthRows(byClass), aligns))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var class string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove pending requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				trimmed := strings.TrimSpace(class)
				var removed int64
				if client != nil {
					resp, err := client.QueueClear(trimmed)
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					if trimmed == "" {
						removed, err = store.Clear(cmd.Context())
					} else {
						removed, err = store.ClearClass(cmd.Context(), trimmed)
					}
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, ipc.QueueClearResponse{Removed: removed})
				}
				if trimmed == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d pending requests\n", removed)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d pending requests from class %s\n", removed, trimmed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "Clear only this request class")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove pending requests by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				type removal struct {
					ID      int64 `json:"id"`
					Removed bool  `json:"removed"`
				}
				results := make([]removal, 0, len(ids))
				for _, id := range ids {
					var removed bool
					if client != nil {
						resp, err := client.QueueRemove(id)
						if err != nil {
							return err
						}
						removed = resp.Removed
					} else {
						var err error
						removed, err = store.Remove(cmd.Context(), id)
						if err != nil {
							return err
						}
					}
					results = append(results, removal{ID: id, Removed: removed})
				}
				if jsonOutput {
					return writeJSON(cmd, results)
				}
				for _, result := range results {
					if result.Removed {
						fmt.Fprintf(cmd.OutOrStdout(), "Removed request %d\n", result.ID)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Request %d not found\n", result.ID)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueFlushCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Deliver pending requests now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Flush()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if resp.Remaining == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Flush complete; queue is empty")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Flush complete; %d requests remain pending\n", resp.Remaining)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report queue and database health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var report api.HealthReport
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					report = resp.Report
				} else {
					summary, err := store.Health(cmd.Context())
					if err != nil {
						return err
					}
					report.Queue = api.FromHealthSummary(summary)
					db, checkErr := store.CheckHealth(cmd.Context())
					if checkErr != nil && db.Error == "" {
						return checkErr
					}
					dto := api.FromDatabaseHealth(db)
					report.Database = &dto
					report.Degraded = db.Error != "" || !db.IntegrityCheck
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				renderHealthReport(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func renderHealthReport(cmd *cobra.Command, report api.HealthReport) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Pending requests: %d\n", report.Queue.Total)
	if report.Queue.Oldest != "" {
		fmt.Fprintf(out, "Oldest request: %s\n", formatDisplayTime(report.Queue.Oldest))
	}
	if len(report.Queue.ByClass) > 0 {
		classes := make([]string, 0, len(report.Queue.ByClass))
		for class := range report.Queue.ByClass {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			fmt.Fprintf(out, "  %s: %d\n", formatClassLabel(class), report.Queue.ByClass[class])
		}
	}
	fmt.Fprintf(out, "Degraded: %s\n", yesNo(report.Degraded))

	db := report.Database
	if db == nil {
		return
	}
	fmt.Fprintf(out, "Database path: %s\n", db.Path)
	fmt.Fprintf(out, "Database exists: %s\n", yesNo(db.Exists))
	fmt.Fprintf(out, "Database readable: %s\n", yesNo(db.Readable))
	if db.SchemaVersion != "" {
		fmt.Fprintf(out, "Schema version: %s\n", db.SchemaVersion)
	}
	fmt.Fprintf(out, "Table present: %s\n", yesNo(db.TableExists))
	if len(db.ColumnsPresent) > 0 {
		columns := append([]string(nil), db.ColumnsPresent...)
		sort.Strings(columns)
		fmt.Fprintf(out, "Columns present: %s\n", strings.Join(columns, ", "))
	}
	if len(db.MissingColumns) > 0 {
		missing := append([]string(nil), db.MissingColumns...)
		sort.Strings(missing)
		fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
	} else {
		fmt.Fprintln(out, "Missing columns: none")
	}
	fmt.Fprintf(out, "Integrity check: %s\n", yesNo(db.IntegrityCheck))
	fmt.Fprintf(out, "Total items: %d\n", db.TotalRequests)
	if db.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", db.Error)
	}
}
