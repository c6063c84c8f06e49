package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harmon-data/harmon/internal/reconcile"
	"github.com/harmon-data/harmon/internal/remote"
)

// newStoresCommand creates the stores command group.
func newStoresCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Manage remote store connections",
	}
	cmd.AddCommand(newStoresAddCommand(opts))
	cmd.AddCommand(newStoresListCommand(opts))
	cmd.AddCommand(newStoresDeleteCommand(opts))
	cmd.AddCommand(newStoresTestCommand(opts))
	cmd.AddCommand(newStoresPushTestCommand(opts))
	return cmd
}

func newStoresAddCommand(opts *RootOptions) *cobra.Command {
	conn := &reconcile.StoreConnection{}

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Register a store connection",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conn.Name = args[0]
			id, err := a.storesRepo().Create(cmd.Context(), conn)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create store connection", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]int64{"id": id},
				fmt.Sprintf("Created store %d (%s, %s)", id, conn.Name, conn.Platform),
			)
		},
	}

	cmd.Flags().StringVar(&conn.Platform, "platform", "", fmt.Sprintf("platform (%s)", strings.Join(remote.Platforms, "|")))
	cmd.Flags().StringVar(&conn.BaseURL, "url", "", "store base URL")
	cmd.Flags().StringVar(&conn.APIKey, "api-key", "", "API key / consumer key")
	cmd.Flags().StringVar(&conn.APISecret, "api-secret", "", "API secret / consumer secret")
	cmd.Flags().StringVar(&conn.AccessToken, "access-token", "", "access token")
	cmd.Flags().StringVar(&conn.AdapterConfig, "adapter-config", "", "extra adapter settings as JSON (custom platform)")
	cmd.Flags().StringVar(&conn.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newStoresListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List store connections",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conns, err := a.storesRepo().List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list stores", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d stores", len(conns))
			for _, c := range conns {
				lastSync := "never"
				if !c.LastSyncAt.IsZero() {
					lastSync = c.LastSyncAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(&text, "\n%4d  %-20s %-12s %-30s last sync: %s",
					c.ID, c.Name, c.Platform, c.BaseURL, lastSync)
			}
			return f.Success(conns, text.String())
		},
	}
}

func newStoresDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a store connection and all its sync state",
		Args:  cobra.ExactArgs(1),
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

			if err := a.storesRepo().Delete(cmd.Context(), id); err != nil {
				if errors.Is(err, reconcile.ErrNotFound) {
					return NewExitError(ExitFailure, fmt.Sprintf("store %d not found", id))
				}
				return WrapExitError(ExitCommandError, "failed to delete store", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]int64{"deleted": id},
				fmt.Sprintf("Deleted store %d (mappings, queue items, and logs cascaded)", id),
			)
		},
	}
}

func newStoresTestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "test <id>",
		Short:         "Probe a store connection's credentials",
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

			adapter, err := storeAdapter(cmd, a, id)
			if err != nil {
				return err
			}

			result := adapter.TestConnection(cmd.Context())
			f := formatter(cmd, opts)
			if !result.Success {
				if err := f.Error("CONNECTION_FAILED", result.Message, nil); err != nil {
					return err
				}
				return NewExitError(ExitFailure, "connection test failed")
			}
			text := fmt.Sprintf("%s (%s)", result.Message, result.APIVersion)
			if result.StoreName != "" {
				text += " store: " + result.StoreName
			}
			return f.Success(result, text)
		},
	}
}

func newStoresPushTestCommand(opts *RootOptions) *cobra.Command {
	var updates []string

	cmd := &cobra.Command{
		Use:   "push-test <id> <remote-id>",
		Short: "Push field updates to one remote product",
		Long: `Push field updates to a remote product, bypassing the queue. Updates
are field=value pairs over the normalized field names (name, sku, price,
stock, status, description). This is a manual escape hatch; approved queue
items are not pushed automatically.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			fields := map[string]string{}
			for _, u := range updates {
				k, v, ok := strings.Cut(u, "=")
				if !ok {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid update %q, want field=value", u))
				}
				fields[k] = v
			}
			if len(fields) == 0 {
				return NewExitError(ExitCommandError, "no updates given, use --set field=value")
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, err := storeAdapter(cmd, a, id)
			if err != nil {
				return err
			}

			ok, err := adapter.PushProductUpdate(cmd.Context(), args[1], fields)
			if err != nil {
				return WrapExitError(ExitFailure, "push failed", err)
			}
			if !ok {
				return NewExitError(ExitFailure, "nothing pushed: no updatable fields for this platform")
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]any{"remote_id": args[1], "updated": len(fields)},
				fmt.Sprintf("Pushed %d field(s) to remote product %s", len(fields), args[1]),
			)
		},
	}

	cmd.Flags().StringArrayVar(&updates, "set", nil, "field=value update (repeatable)")
	return cmd
}

// storeAdapter loads a connection and builds its adapter.
func storeAdapter(cmd *cobra.Command, a *app, id int64) (remote.Adapter, error) {
	conn, err := a.storesRepo().Get(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, reconcile.ErrNotFound) {
			return nil, NewExitError(ExitFailure, fmt.Sprintf("store %d not found", id))
		}
		return nil, WrapExitError(ExitCommandError, "failed to load store", err)
	}
	adapter, err := remote.New(conn.RemoteConfig(), a.cfg.RemoteOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build adapter", err)
	}
	return adapter, nil
}
