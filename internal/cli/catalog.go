package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harmon-data/harmon/internal/catalog"
	"github.com/harmon-data/harmon/internal/harmonize"
)

// newInitCommand creates the init command. Opening the store applies the
// schema and migrations, so init is just an explicit first open.
func newInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "init",
		Short:         "Create or migrate the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := formatter(cmd, opts)
			return f.Success(
				map[string]string{"database": a.cfg.DatabasePath},
				fmt.Sprintf("Database ready: %s", a.cfg.DatabasePath),
			)
		},
	}
}

type importSummary struct {
	Imported         int      `json:"imported"`
	MatchedColumns   []string `json:"matched_columns"`
	UnmatchedColumns []string `json:"unmatched_columns"`
}

// newImportCommand creates the import command.
func newImportCommand(opts *RootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import product records from a CSV export",
		Long: `Import product records from a CSV file. The header row is matched
against the known source spreadsheet headers (including their historic
misspellings); unmatched columns are reported and skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := runImport(cmd, a, args[0], replace)
			if err != nil {
				return err
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "Imported %d records (%d columns matched)",
				summary.Imported, len(summary.MatchedColumns))
			if len(summary.UnmatchedColumns) > 0 {
				fmt.Fprintf(&text, "\nUnmatched columns skipped: %s",
					strings.Join(summary.UnmatchedColumns, ", "))
			}
			return f.Success(summary, text.String())
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "purge existing records before importing")
	return cmd
}

func runImport(cmd *cobra.Command, a *app, path string, replace bool) (*importSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open import file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse CSV", err)
	}
	if len(rows) == 0 {
		return nil, NewExitError(ExitCommandError, "import file has no header row")
	}

	header := rows[0]
	summary := &importSummary{}
	fieldFor := make([]string, len(header))
	for i, h := range header {
		field, ok := catalog.FieldForHeader(h)
		if !ok {
			summary.UnmatchedColumns = append(summary.UnmatchedColumns, strings.TrimSpace(h))
			continue
		}
		fieldFor[i] = field
		summary.MatchedColumns = append(summary.MatchedColumns, field)
	}
	if len(summary.MatchedColumns) == 0 {
		return nil, NewExitError(ExitCommandError, "no columns matched the known source headers")
	}

	records := make([]catalog.Product, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var p catalog.Product
		for i, value := range row {
			if i >= len(fieldFor) || fieldFor[i] == "" {
				continue
			}
			field, _ := catalog.LookupField(fieldFor[i])
			field.Set(&p, strings.TrimSpace(value))
		}
		records = append(records, p)
	}

	ctx := cmd.Context()
	if replace {
		if _, _, err := a.catalog.PurgeAll(ctx, false); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to purge catalog", err)
		}
	}
	n, err := a.catalog.BulkImport(ctx, records)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "import failed", err)
	}
	summary.Imported = n
	return summary, nil
}

// newExportCommand creates the export command.
func newExportCommand(opts *RootOptions) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Export the catalog to CSV",
		Long: `Export every product record to CSV in the original column order.
Headers follow the active export revision: once fix_export_typos has been
applied, the known source misspellings are corrected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			revision, err := a.harmonizeEngine().ExportRevision(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve export revision", err)
			}
			products, err := a.catalog.Matching(ctx, search)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load catalog", err)
			}

			file, err := os.Create(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create export file", err)
			}
			defer file.Close()

			writer := csv.NewWriter(file)
			if err := writer.Write(harmonize.ExportHeaders(revision)); err != nil {
				return WrapExitError(ExitCommandError, "failed to write header", err)
			}
			row := make([]string, len(catalog.ImportColumns))
			for i := range products {
				for j, col := range catalog.ImportColumns {
					field, _ := catalog.LookupField(col.Field)
					row[j] = field.Get(&products[i])
				}
				if err := writer.Write(row); err != nil {
					return WrapExitError(ExitCommandError, "failed to write record", err)
				}
			}
			writer.Flush()
			if err := writer.Error(); err != nil {
				return WrapExitError(ExitCommandError, "failed to flush export", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]any{"exported": len(products), "revision": revision, "file": args[0]},
				fmt.Sprintf("Exported %d records to %s (header revision %d)", len(products), args[0], revision),
			)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "export only records matching name, brand, model, or SKU")
	return cmd
}

// newProductsCommand creates the products command group.
func newProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and manage product records",
	}
	cmd.AddCommand(newProductsListCommand(opts))
	cmd.AddCommand(newProductsShowCommand(opts))
	cmd.AddCommand(newProductsSetCommand(opts))
	cmd.AddCommand(newProductsDeleteCommand(opts))
	cmd.AddCommand(newProductsPurgeCommand(opts))
	return cmd
}

func newProductsListCommand(opts *RootOptions) *cobra.Command {
	var (
		search string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List product records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			products, err := a.catalog.List(cmd.Context(), search, offset, limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list products", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "%d records", len(products))
			for i := range products {
				p := &products[i]
				fmt.Fprintf(&text, "\n%6d  %-30s  %-20s  %s",
					p.ID, clip(p.ProductName, 30), clip(p.BrandCapitalized, 20), p.SKU)
			}
			return f.Success(products, text.String())
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "filter by name, brand, or model")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	return cmd
}

func newProductsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one product record",
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

			p, err := a.catalog.Get(cmd.Context(), id)
			if errors.Is(err, catalog.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("product %d not found", id))
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load product", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "Product %d", p.ID)
			for _, name := range catalog.FieldNames() {
				field, _ := catalog.LookupField(name)
				if v := field.Get(&p); v != "" {
					fmt.Fprintf(&text, "\n  %-26s %s", name+":", v)
				}
			}
			return f.Success(p, text.String())
		},
	}
}

func newProductsSetCommand(opts *RootOptions) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:           "set <id>",
		Short:         "Update fields on one product record",
		Example:       `  harmon products set 42 --set brand_capitalized=Sony --set model=WH-1000XM5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				return NewExitError(ExitCommandError, "at least one --set field=value is required")
			}
			updates := make(map[string]string, len(sets))
			for _, s := range sets {
				field, value, ok := strings.Cut(s, "=")
				if !ok || field == "" {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q, expected field=value", s))
				}
				updates[field] = value
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.catalog.UpdateFields(cmd.Context(), id, updates)
			if errors.Is(err, catalog.ErrUnknownField) {
				return WrapExitError(ExitCommandError, "unknown field", err)
			}
			if errors.Is(err, catalog.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("product %d not found", id))
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to update product", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]any{"id": id, "updated": updates},
				fmt.Sprintf("Updated %d field(s) on product %d", len(updates), id),
			)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value pair to write (repeatable)")
	return cmd
}

func newProductsDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete one product record",
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

			if err := a.catalog.Delete(cmd.Context(), id); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return NewExitError(ExitFailure, fmt.Sprintf("product %d not found", id))
				}
				return WrapExitError(ExitCommandError, "failed to delete product", err)
			}

			f := formatter(cmd, opts)
			return f.Success(
				map[string]int64{"deleted": id},
				fmt.Sprintf("Deleted product %d", id),
			)
		},
	}
}

func newProductsPurgeCommand(opts *RootOptions) *cobra.Command {
	var includeRules bool

	cmd := &cobra.Command{
		Use:           "purge",
		Short:         "Delete every product record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			products, rulesDeleted, err := a.catalog.PurgeAll(cmd.Context(), includeRules)
			if err != nil {
				return WrapExitError(ExitCommandError, "purge failed", err)
			}

			f := formatter(cmd, opts)
			text := fmt.Sprintf("Purged %d products", products)
			if includeRules {
				text += fmt.Sprintf(" and %d rules", rulesDeleted)
			}
			return f.Success(
				map[string]int64{"products": products, "rules": rulesDeleted},
				text,
			)
		},
	}

	cmd.Flags().BoolVar(&includeRules, "include-rules", false, "also delete normalization rules")
	return cmd
}

// newStatsCommand creates the stats command.
func newStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show catalog summary statistics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.catalog.Stats(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to compute stats", err)
			}

			f := formatter(cmd, opts)
			var text strings.Builder
			fmt.Fprintf(&text, "Products: %d\n", stats.TotalProducts)
			fmt.Fprintf(&text, "Unique brands: %d, models: %d, types: %d\n",
				stats.UniqueBrands, stats.UniqueModels, stats.UniqueProductTypes)
			fmt.Fprintf(&text, "With SKU: %d, barcode: %d, GTIN: %d\n",
				stats.WithSKU, stats.WithBarcode, stats.WithGTIN)
			fmt.Fprintf(&text, "Validation: %v\n", stats.ValidationStatus)
			text.WriteString("Top brands:")
			for _, b := range stats.TopBrands {
				fmt.Fprintf(&text, "\n  %-30s %d", b.Name, b.Count)
			}
			return f.Success(stats, text.String())
		},
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", arg))
	}
	return id, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
