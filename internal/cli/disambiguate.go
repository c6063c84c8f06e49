package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// defaultThreshold is the similarity score (0-100) two values must reach
// to land in the same group.
const defaultThreshold = 85

// newDisambiguateCommand creates the disambiguate command.
func newDisambiguateCommand(opts *RootOptions) *cobra.Command {
	var threshold int

	cmd := &cobra.Command{
		Use:   "disambiguate <field>",
		Short: "Cluster similar values of an authority field",
		Long: `Cluster the distinct values of an authority field (brand_capitalized,
product_name, model, product_type) by fuzzy similarity. Each group's main
value is its longest member; groups are candidates for normalization rules.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			groups, err := a.clusterService().Groups(cmd.Context(), args[0], threshold)
			if err != nil {
				return WrapExitError(ExitFailure, "disambiguation failed", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d groups for %s (threshold %d)", len(groups), args[0], threshold)
			for _, g := range groups {
				fmt.Fprintf(&text, "\n%s (%d):", g.Main, g.Count)
				for _, v := range g.Variations {
					fmt.Fprintf(&text, "\n    %s", v)
				}
			}
			return f.Success(groups, text.String())
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", defaultThreshold, "similarity threshold (0-100)")
	return cmd
}

// newAuthorityCommand creates the authority command.
func newAuthorityCommand(opts *RootOptions) *cobra.Command {
	var threshold int

	cmd := &cobra.Command{
		Use:           "authority <field>",
		Short:         "Show a field's disambiguation state with rule annotations",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.clusterService().Authority(cmd.Context(), args[0], threshold)
			if err != nil {
				return WrapExitError(ExitFailure, "authority view failed", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%s: %d groups, %d with rules pending, %d rules total",
				args[0], view.TotalGroups, view.PendingGroups, view.TotalRules)
			for _, g := range view.Groups {
				marker := " "
				if g.HasRules {
					marker = "*"
				}
				fmt.Fprintf(&text, "\n%s %s (%d)", marker, g.Main, g.Count)
				if g.ResolvedTo != "" {
					fmt.Fprintf(&text, " -> %s", g.ResolvedTo)
				}
			}
			return f.Success(view, text.String())
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", defaultThreshold, "similarity threshold (0-100)")
	return cmd
}
