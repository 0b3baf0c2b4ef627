package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/cache"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/queue"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the offline response cache",
	}
	cacheCmd.AddCommand(
		newCacheGetCommand(ctx),
		newCacheSetCommand(ctx),
		newCacheDeleteCommand(ctx),
		newCacheStatsCommand(ctx),
		newCacheSweepCommand(ctx),
	)
	return cacheCmd
}

// openCache wraps a directly-opened store in the cache layer so the
// offline path applies the same expiry and quota rules as the daemon.
func (ctx *commandContext) openCache(store *queue.Store) *cache.Cache {
	return cache.New(ctx.configValue(), store, logging.NewNop())
}

func newCacheGetCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <type> <key>",
		Short: "Fetch a cached payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, key := args[0], args[1]
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var entry *api.CacheEntry
				if client != nil {
					resp, err := client.CacheGet(typ, key)
					if err != nil {
						return err
					}
					if resp.Found {
						entry = resp.Entry
					}
				} else {
					item, err := ctx.openCache(store).FetchItem(cmd.Context(), typ, key)
					if err != nil {
						return err
					}
					if item != nil {
						converted := api.FromCachedItem(item)
						entry = &converted
					}
				}
				if entry == nil {
					return fmt.Errorf("cache entry %s/%s not found", typ, key)
				}
				if jsonOutput {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				if len(entry.Payload) > 0 {
					out.Write(entry.Payload)
					if entry.Payload[len(entry.Payload)-1] != '\n' {
						fmt.Fprintln(out)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the full entry as JSON")
	return cmd
}

func newCacheSetCommand(ctx *commandContext) *cobra.Command {
	var payloadFile string
	var ttl time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "set <type> <key> [payload]",
		Short: "Store a payload in the cache",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, key := args[0], args[1]
			var payload []byte
			switch {
			case len(args) == 3 && payloadFile != "":
				return fmt.Errorf("payload argument and --payload-file are mutually exclusive")
			case len(args) == 3:
				payload = []byte(args[2])
			case payloadFile != "":
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("read payload file: %w", err)
				}
				payload = data
			default:
				return fmt.Errorf("payload is required (positional argument or --payload-file)")
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					// The wire protocol carries whole seconds; round up
					// so short TTLs still expire.
					ttlSeconds := int((ttl + time.Second - 1) / time.Second)
					_, err := client.CacheSet(ipc.CacheSetRequest{
						Type:       typ,
						Key:        key,
						Payload:    payload,
						TTLSeconds: ttlSeconds,
					})
					if err != nil {
						return err
					}
				} else {
					if err := ctx.openCache(store).Store(cmd.Context(), typ, key, payload, ttl); err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, ipc.CacheSetResponse{Stored: true})
				}
				if ttl > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Stored cache entry %s/%s (expires in %s)\n", typ, key, ttl)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Stored cache entry %s/%s\n", typ, key)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Read payload from file")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Entry lifetime (0 keeps the entry until swept by quota)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newCacheDeleteCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "delete <type> <key>",
		Short: "Remove a cached payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, key := args[0], args[1]
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var deleted bool
				if client != nil {
					resp, err := client.CacheDelete(typ, key)
					if err != nil {
						return err
					}
					deleted = resp.Deleted
				} else {
					var err error
					deleted, err = ctx.openCache(store).Delete(cmd.Context(), typ, key)
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, ipc.CacheDeleteResponse{Deleted: deleted})
				}
				if deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted cache entry %s/%s\n", typ, key)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Cache entry %s/%s not found\n", typ, key)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var usage api.CacheUsage
				if client != nil {
					resp, err := client.CacheStats()
					if err != nil {
						return err
					}
					usage = resp.Usage
				} else {
					raw, err := ctx.openCache(store).Usage(cmd.Context())
					if err != nil {
						return err
					}
					usage = api.FromCacheUsage(raw)
				}
				if jsonOutput {
					return writeJSON(cmd, usage)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Entries: %d\n", usage.Entries)
				fmt.Fprintf(out, "Payload bytes: %d\n", usage.UsedBytes)
				fmt.Fprintf(out, "Quota bytes: %d\n", usage.QuotaBytes)
				fmt.Fprintf(out, "Free disk bytes: %d\n", usage.FreeBytes)
				if len(usage.ByType) > 0 {
					types := make([]string, 0, len(usage.ByType))
					for typ := range usage.ByType {
						types = append(types, typ)
					}
					sort.Strings(types)
					rows := make([][]string, 0, len(types))
					for _, typ := range types {
						rows = append(rows, []string{typ, fmt.Sprintf("%d", usage.ByType[typ])})
					}
					fmt.Fprintln(out, renderTable([]string{"Type", "Entries"}, rows, []columnAlignment{alignLeft, alignRight}))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newCacheSweepCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var removed int64
				if client != nil {
					resp, err := client.CacheSweep()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					removed, err = ctx.openCache(store).SweepExpired(cmd.Context())
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, ipc.CacheSweepResponse{Removed: removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache entries\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}
