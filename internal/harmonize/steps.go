package harmonize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/harmon-data/harmon/internal/catalog"
)

// runConsolidateBrands fills brand_capitalized from brand_lower when blank,
// then applies any active literal rule to the resulting value. Rule
// application happens after the fallback, not before: a rule keyed on the
// fallback value must still fire for records that only had the fallback.
func runConsolidateBrands(ctx context.Context, e *env) ([]Change, string, error) {
	literal, err := e.rules.Literal(ctx, "brand_capitalized")
	if err != nil {
		return nil, "", fmt.Errorf("consolidate brands: %w", err)
	}

	var changes []Change
	for i := range e.products {
		p := &e.products[i]

		val := p.BrandCapitalized
		if val == "" {
			val = p.BrandLower
		}
		if mapped, ok := literal[val]; ok && mapped != val {
			val = mapped
		}
		if val != p.BrandCapitalized {
			changes = append(changes, Change{
				RecordID: p.ID,
				Field:    "brand_capitalized",
				OldValue: p.BrandCapitalized,
				NewValue: val,
			})
		}
	}
	return changes, "", nil
}

var collapseWhitespace = regexp.MustCompile(`\s{2,}`)

// cleanName normalizes one product name. Applying it to its own output is
// a fixed point, which is what makes the step idempotent.
func cleanName(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = collapseWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return norm.NFC.String(s)
}

// runCleanProductNames cleans whitespace damage in product names.
// Blank names are left alone.
func runCleanProductNames(ctx context.Context, e *env) ([]Change, string, error) {
	var changes []Change
	for i := range e.products {
		p := &e.products[i]
		if p.ProductName == "" {
			continue
		}
		cleaned := cleanName(p.ProductName)
		if cleaned != p.ProductName {
			changes = append(changes, Change{
				RecordID: p.ID,
				Field:    "product_name",
				OldValue: p.ProductName,
				NewValue: cleaned,
			})
		}
	}
	return changes, "", nil
}

// unitPattern is one ordered unit-normalization substitution.
type unitPattern struct {
	re   *regexp.Regexp
	repl string
}

// unitPatterns run in declared order; later patterns act on the output of
// earlier ones. The bare-l pattern sits after ml/lt so "250ml" is not
// re-matched, and the word boundary keeps it from firing inside words.
var unitPatterns = []unitPattern{
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*ml\b`), "$1 mL"},
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*lts?\b`), "$1 L"},
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*l\b`), "$1 L"},
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*kgs?\b`), "$1 kg"},
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*grs?\b`), "$1 g"},
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*cms?\b`), "$1 cm"},
	{regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*mts?\b`), "$1 m"},
}

// volumeFields are the two measure-bearing fields the step touches.
var volumeFields = []string{"measure", "unit_of_measure"}

// runStandardizeVolumes applies the ordered unit substitutions to both
// measure fields, then any regex rules the operator scoped to each field.
// A rule whose pattern fails to compile is skipped for that one rule; the
// rest of the batch proceeds.
func runStandardizeVolumes(ctx context.Context, e *env) ([]Change, string, error) {
	skippedRules := 0
	var changes []Change

	for _, fieldName := range volumeFields {
		field, _ := catalog.LookupField(fieldName)

		regexRules, err := e.rules.Regex(ctx, fieldName)
		if err != nil {
			return nil, "", fmt.Errorf("standardize volumes: %w", err)
		}
		compiled := make([]unitPattern, 0, len(regexRules))
		for _, r := range regexRules {
			re, err := regexp.Compile(r.OriginalValue)
			if err != nil {
				skippedRules++
				continue
			}
			compiled = append(compiled, unitPattern{re: re, repl: r.NormalizedValue})
		}

		for i := range e.products {
			p := &e.products[i]
			val := field.Get(p)
			if val == "" {
				continue
			}
			next := val
			for _, up := range unitPatterns {
				next = up.re.ReplaceAllString(next, up.repl)
			}
			for _, cr := range compiled {
				next = cr.re.ReplaceAllString(next, cr.repl)
			}
			if next != val {
				changes = append(changes, Change{
					RecordID: p.ID,
					Field:    fieldName,
					OldValue: val,
					NewValue: next,
				})
			}
		}
	}

	details := ""
	if skippedRules > 0 {
		details = fmt.Sprintf("skipped %d malformed regex rule(s)", skippedRules)
	}
	return changes, details, nil
}

// gtinAliases and gtinReasonAliases are the legacy columns consolidated
// into the primary code fields, in backfill priority order.
var (
	gtinAliases = []string{
		"product_code_universal_1",
		"product_code_universal_2",
		"product_code_universal_3",
		"product_code_universal_4",
	}
	gtinReasonAliases = []string{
		"gtin_empty_reason_1",
		"gtin_empty_reason_2",
		"gtin_empty_reason_3",
		"gtin_product_reason",
		"gtin_reason_lower",
		"gtin_empty_reason_typo",
	}
)

// firstNonBlank returns the first non-blank alias value, stopping at the
// first match.
func firstNonBlank(p *catalog.Product, aliases []string) string {
	for _, name := range aliases {
		field, _ := catalog.LookupField(name)
		if v := field.Get(p); v != "" {
			return v
		}
	}
	return ""
}

// runConsolidateGTIN backfills gtin and gtin_reason from their alias
// columns when the primary is blank.
func runConsolidateGTIN(ctx context.Context, e *env) ([]Change, string, error) {
	var changes []Change
	for i := range e.products {
		p := &e.products[i]

		if p.GTIN == "" {
			if v := firstNonBlank(p, gtinAliases); v != "" {
				changes = append(changes, Change{
					RecordID: p.ID, Field: "gtin", OldValue: "", NewValue: v,
				})
			}
		}
		if p.GTINReason == "" {
			if v := firstNonBlank(p, gtinReasonAliases); v != "" {
				changes = append(changes, Change{
					RecordID: p.ID, Field: "gtin_reason", OldValue: "", NewValue: v,
				})
			}
		}
	}
	return changes, "", nil
}
