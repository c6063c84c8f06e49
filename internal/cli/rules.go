package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harmon-data/harmon/internal/rules"
)

// newRulesCommand creates the rules command group.
func newRulesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage normalization rules",
	}
	cmd.AddCommand(newRulesListCommand(opts))
	cmd.AddCommand(newRulesAddCommand(opts))
	cmd.AddCommand(newRulesBulkAddCommand(opts))
	cmd.AddCommand(newRulesDeleteCommand(opts))
	cmd.AddCommand(newRulesApplyCommand(opts))
	return cmd
}

func newRulesListCommand(opts *RootOptions) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List normalization rules",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.rules.List(cmd.Context(), field)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list rules", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d rules", len(list))
			for _, r := range list {
				kind := "literal"
				if r.IsRegex {
					kind = "regex"
				}
				fmt.Fprintf(&text, "\n%4d  %-20s %-7s %q -> %q",
					r.ID, r.FieldName, kind, r.OriginalValue, r.NormalizedValue)
			}
			return f.Success(list, text.String())
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "only rules for this field")
	return cmd
}

func newRulesAddCommand(opts *RootOptions) *cobra.Command {
	var isRegex bool

	cmd := &cobra.Command{
		Use:   "add <field> <original> <normalized>",
		Short: "Create a rule, replacing any literal rule for the same value",
		Args:  cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.rules.Save(cmd.Context(), rules.Rule{
				FieldName:       args[0],
				OriginalValue:   args[1],
				NormalizedValue: args[2],
				IsRegex:         isRegex,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to save rule", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]int64{"id": id},
				fmt.Sprintf("Saved rule %d: %s %q -> %q", id, args[0], args[1], args[2]),
			)
		},
	}

	cmd.Flags().BoolVar(&isRegex, "regex", false, "treat the original value as a regular expression")
	return cmd
}

func newRulesBulkAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-add <field> <canonical> <variation>...",
		Short: "Map several variations to one canonical value",
		Long: `Create one literal rule per variation, all pointing at the canonical
value. A variation equal to the canonical is skipped. This is the usual way
to resolve a disambiguation group.`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.rules.BulkCreate(cmd.Context(), args[0], args[1], args[2:])
			if err != nil {
				return WrapExitError(ExitFailure, "bulk rule creation failed", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]int{"created": n},
				fmt.Sprintf("Created %d rules mapping to %q", n, args[1]),
			)
		},
	}
}

func newRulesDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a rule",
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

			if err := a.rules.Delete(cmd.Context(), id); err != nil {
				return WrapExitError(ExitFailure, "failed to delete rule", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]int64{"deleted": id},
				fmt.Sprintf("Deleted rule %d", id),
			)
		},
	}
}

func newRulesApplyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "apply <field>",
		Short:         "Apply a field's literal rules to the catalog now",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.rules.ApplyAll(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "rule application failed", err)
			}

			f := formatter(cmd, opts)
			return f.Success(result, fmt.Sprintf(
				"Applied %d rules, %d records updated", result.RulesApplied, result.RecordsUpdated))
		},
	}
}
