package harmonize

import (
	"context"

	"github.com/harmon-data/harmon/internal/catalog"
	"github.com/harmon-data/harmon/internal/rules"
)

// Change is one field-level mutation computed by a step: the unit the audit
// log records and the unit undo/redo replays. Immutable once logged.
type Change struct {
	RecordID int64  `json:"record_id"`
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// RuleSource supplies normalization rules to steps.
// Implemented by rules.Repository.
type RuleSource interface {
	Literal(ctx context.Context, field string) (map[string]string, error)
	Regex(ctx context.Context, field string) ([]rules.Rule, error)
}

// env carries the catalog and rule state one step run observes. Steps are
// pure functions of it: same env, same change list.
type env struct {
	products []catalog.Product
	rules    RuleSource

	// exportCorrected is true when the export header corrections are
	// already active (fix_export_typos has an un-reverted application).
	exportCorrected bool
}

// stepFunc computes the ordered change list for one step. details is
// free-form text stored on the log entry (used by steps whose effect is not
// per-record, like the export header correction).
type stepFunc func(ctx context.Context, e *env) (changes []Change, details string, err error)

// StepDefinition describes one pipeline step. Definitions are static;
// Order is the pipeline's total order and apply-all iterates it explicitly
// rather than relying on slice position.
type StepDefinition struct {
	ID          string `json:"step_id"`
	Name        string `json:"step_name"`
	Description string `json:"description"`
	Order       int    `json:"order"`

	run stepFunc
}

// Steps is the full pipeline in declared order.
var Steps = []StepDefinition{
	{
		ID:          "consolidate_brands",
		Name:        "Consolidate Brands",
		Description: "Fill the primary brand field from the lowercase fallback column, then apply active brand normalization rules.",
		Order:       1,
		run:         runConsolidateBrands,
	},
	{
		ID:          "clean_product_names",
		Name:        "Clean Product Names",
		Description: "Strip non-breaking spaces and tabs, collapse repeated whitespace, and trim product names.",
		Order:       2,
		run:         runCleanProductNames,
	},
	{
		ID:          "standardize_volumes",
		Name:        "Standardize Volumes & Measures",
		Description: "Normalize unit notation (mL, L, kg, g, cm, m) in the measure fields, then apply field-scoped regex rules.",
		Order:       3,
		run:         runStandardizeVolumes,
	},
	{
		ID:          "consolidate_gtin",
		Name:        "Consolidate GTIN Codes",
		Description: "Backfill the GTIN and GTIN-reason fields from their legacy alias columns, first non-blank wins.",
		Order:       4,
		run:         runConsolidateGTIN,
	},
	{
		ID:          "fix_export_typos",
		Name:        "Fix Export Header Typos",
		Description: "Activate the corrected export header labels for known source misspellings.",
		Order:       5,
		run:         runFixExportTypos,
	},
}

var stepsByID = func() map[string]StepDefinition {
	m := make(map[string]StepDefinition, len(Steps))
	for _, s := range Steps {
		m[s.ID] = s
	}
	return m
}()

// LookupStep returns the definition for a step ID.
func LookupStep(id string) (StepDefinition, bool) {
	s, ok := stepsByID[id]
	return s, ok
}
