package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harmon-data/harmon/internal/reconcile"
)

// newPullCommand creates the pull command.
func newPullCommand(opts *RootOptions) *cobra.Command {
	var (
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "pull <store-id>",
		Short: "Pull one page of remote products and reconcile it",
		Long: `Fetch one page of products from a remote store and reconcile it against
the store's sync mappings. New products get a mapping and a new_product
queue item; changed fields get one pending queue item each, deduplicated
against items the operator has not resolved yet.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.reconcileEngine().Pull(cmd.Context(), storeID, page, perPage)
			if err != nil {
				return WrapExitError(ExitFailure, "pull failed", err)
			}

			f := formatter(cmd, opts)
			return f.Success(result, fmt.Sprintf(
				"Pulled page %d: %d fetched, %d skipped, %d new mappings, %d enqueued, %d deduped",
				result.Page, result.Fetched, result.Skipped, result.NewMappings,
				result.Enqueued, result.Deduped))
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "products per page")
	return cmd
}

// newQueueCommand creates the queue command group.
func newQueueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Review and resolve sync queue items",
	}
	cmd.AddCommand(newQueueListCommand(opts))
	cmd.AddCommand(newQueueResolveCommand(opts, "approve", reconcile.StatusApproved))
	cmd.AddCommand(newQueueResolveCommand(opts, "reject", reconcile.StatusRejected))
	cmd.AddCommand(newQueueBulkCommand(opts, "bulk-approve", reconcile.StatusApproved))
	cmd.AddCommand(newQueueBulkCommand(opts, "bulk-reject", reconcile.StatusRejected))
	cmd.AddCommand(newQueueLogsCommand(opts))
	return cmd
}

func newQueueListCommand(opts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:           "list <store-id>",
		Short:         "List a store's queue items",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.queueRepo().List(cmd.Context(), storeID, status)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list queue", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d items", len(items))
			for _, item := range items {
				fmt.Fprintf(&text, "\n%4d  %-8s %-12s %-25s %q -> %q",
					item.ID, item.Status, item.Field, clip(item.ProductName, 25),
					item.LocalValue, item.RemoteValue)
			}
			return f.Success(items, text.String())
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|approved|rejected)")
	return cmd
}

func newQueueResolveCommand(opts *RootOptions, verb, status string) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <item-id>",
		Short:         capitalize(verb) + " a pending queue item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			queue := a.queueRepo()
			var resolveErr error
			if status == reconcile.StatusApproved {
				resolveErr = queue.Approve(cmd.Context(), id)
			} else {
				resolveErr = queue.Reject(cmd.Context(), id)
			}
			if resolveErr != nil {
				if reconcile.IsConflict(resolveErr) {
					return WrapExitError(ExitFailure, "resolution rejected", resolveErr)
				}
				return WrapExitError(ExitCommandError, "resolution failed", resolveErr)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]any{"id": id, "status": status},
				fmt.Sprintf("Item %d %s", id, status),
			)
		},
	}
}

func newQueueBulkCommand(opts *RootOptions, verb, status string) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <store-id>",
		Short:         capitalize(strings.Replace(verb, "-", " ", 1)) + " every pending item of a store",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.queueRepo().BulkResolve(cmd.Context(), storeID, status)
			if err != nil {
				return WrapExitError(ExitCommandError, "bulk resolution failed", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]any{"resolved": n, "status": status},
				fmt.Sprintf("%d items %s", n, status),
			)
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func newQueueLogsCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "logs <store-id>",
		Short:         "Show a store's sync log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.reconcileEngine().Logs(cmd.Context(), storeID, limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load sync logs", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d log entries", len(entries))
			for _, e := range entries {
				fmt.Fprintf(&text, "\n%4d  %-7s %-7s %4d records  %s  %s",
					e.ID, e.Action, e.Status, e.RecordsAffected,
					e.ExecutedAt.Format("2006-01-02 15:04:05"), e.RunToken)
			}
			return f.Success(entries, text.String())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}
