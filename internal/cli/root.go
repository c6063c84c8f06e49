// Package cli wires the operator commands: catalog import/export,
// harmonization, disambiguation, rules, store connections, and sync.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides the config file's database_path
	Config   string // config file path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the harmon CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "harmon",
		Short: "Product catalog harmonization and store sync",
		Long: `harmon maintains a product catalog imported from inconsistent
spreadsheets, harmonizes it through auditable normalization steps, and
reconciles it against remote store platforms.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to yaml config file")

	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newProductsCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newHarmonizeCommand(opts))
	cmd.AddCommand(newDisambiguateCommand(opts))
	cmd.AddCommand(newAuthorityCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	cmd.AddCommand(newStoresCommand(opts))
	cmd.AddCommand(newPullCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
