package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harmon-data/harmon/internal/harmonize"
)

// newHarmonizeCommand creates the harmonize command group.
func newHarmonizeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harmonize",
		Short: "Run and audit harmonization steps",
	}
	cmd.AddCommand(newHarmonizeListCommand(opts))
	cmd.AddCommand(newHarmonizePreviewCommand(opts))
	cmd.AddCommand(newHarmonizeApplyCommand(opts))
	cmd.AddCommand(newHarmonizeApplyAllCommand(opts))
	cmd.AddCommand(newHarmonizeHistoryCommand(opts))
	cmd.AddCommand(newHarmonizeUndoCommand(opts))
	cmd.AddCommand(newHarmonizeRedoCommand(opts))
	return cmd
}

func newHarmonizeListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the available harmonization steps",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			var text strings.Builder
			text.WriteString("Available steps:")
			for _, def := range harmonize.Steps {
				fmt.Fprintf(&text, "\n%d. %-22s %s", def.Order, def.ID, def.Description)
			}
			return f.Success(harmonize.Steps, text.String())
		},
	}
}

func newHarmonizePreviewCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "preview <step-id>",
		Short:         "Show what a step would change without persisting",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			preview, err := a.harmonizeEngine().Preview(cmd.Context(), args[0])
			if err != nil {
				return harmonizeError(err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%s (%s)\n%s\n", preview.StepName, preview.StepID, preview.Description)
			fmt.Fprintf(&text, "Would affect %d records (%d changes)", preview.TotalAffected, len(preview.Changes))
			if preview.Details != "" {
				fmt.Fprintf(&text, "\nDetails: %s", preview.Details)
			}
			for _, c := range preview.SampleChanges {
				fmt.Fprintf(&text, "\n  record %d %s: %q -> %q", c.RecordID, c.Field, c.OldValue, c.NewValue)
			}
			return f.Success(preview, text.String())
		},
	}
}

func newHarmonizeApplyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "apply <step-id>",
		Short:         "Apply a step and log it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.harmonizeEngine().Apply(cmd.Context(), args[0])
			if err != nil {
				return harmonizeError(err)
			}

			f := formatter(cmd, opts)
			return f.Success(result, applyText(result))
		},
	}
}

func newHarmonizeApplyAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "apply-all",
		Short:         "Apply every step in order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.harmonizeEngine().ApplyAll(cmd.Context())
			if err != nil {
				return harmonizeError(err)
			}

			f := formatter(cmd, opts)
			lines := make([]string, 0, len(results))
			for i := range results {
				lines = append(lines, applyText(&results[i]))
			}
			return f.Success(results, strings.Join(lines, "\n"))
		},
	}
}

func applyText(r *harmonize.ApplyResult) string {
	text := fmt.Sprintf("%s: %d records updated (log %d)", r.StepID, r.RecordsUpdated, r.LogID)
	if len(r.FieldsModified) > 0 {
		text += " fields: " + strings.Join(r.FieldsModified, ", ")
	}
	return text
}

func newHarmonizeHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show the harmonization audit log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.harmonizeEngine().History(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load history", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d log entries", len(entries))
			for _, e := range entries {
				state := "applied"
				if e.Reverted {
					state = "reverted"
				}
				fmt.Fprintf(&text, "\n%4d  %-22s %-8s %4d records  %s",
					e.ID, e.StepID, state, e.RecordsUpdated,
					e.ExecutedAt.Format("2006-01-02 15:04:05"))
			}
			return f.Success(entries, text.String())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}

func newHarmonizeUndoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "undo <log-id>",
		Short:         "Revert an applied log entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.harmonizeEngine().Undo(cmd.Context(), logID)
			if err != nil {
				return harmonizeError(err)
			}

			f := formatter(cmd, opts)
			return f.Success(result, revertText("Undid", result))
		},
	}
}

func newHarmonizeRedoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "redo <log-id>",
		Short:         "Reapply a reverted log entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.harmonizeEngine().Redo(cmd.Context(), logID)
			if err != nil {
				return harmonizeError(err)
			}

			f := formatter(cmd, opts)
			return f.Success(result, revertText("Redid", result))
		},
	}
}

func revertText(verb string, r *harmonize.RevertResult) string {
	text := fmt.Sprintf("%s log entry %d: %d records restored", verb, r.LogID, r.RecordsRestored)
	if r.ChangesSkipped > 0 {
		text += fmt.Sprintf(" (%d changes skipped, records deleted)", r.ChangesSkipped)
	}
	return text
}

// harmonizeError maps engine errors onto exit codes: validation and
// conflict errors are operation failures, everything else is a command
// error.
func harmonizeError(err error) error {
	if harmonize.IsValidation(err) || harmonize.IsConflict(err) {
		return WrapExitError(ExitFailure, "harmonization rejected", err)
	}
	return WrapExitError(ExitCommandError, "harmonization failed", err)
}
