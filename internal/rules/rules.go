// Package rules stores operator-approved normalization rules.
//
// A rule maps (field_name, original_value) to a normalized value. Literal
// rules are unique per (field, original): re-saving replaces the previous
// mapping. Regex rules are free-form and scoped to a field; a malformed
// pattern is the operator's data, so appliers skip it rather than abort.
package rules

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harmon-data/harmon/internal/catalog"
)

// Rule is one stored normalization mapping.
type Rule struct {
	ID              int64  `json:"id"`
	FieldName       string `json:"field_name"`
	OriginalValue   string `json:"original_value"`
	NormalizedValue string `json:"normalized_value"`
	IsRegex         bool   `json:"is_regex"`
}

// Repository provides access to the normalization_rules table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a rule repository backed by db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save creates a rule, replacing any existing literal rule for the same
// (field, original). The field must exist in the catalog registry - this is
// where dynamic field access is validated, not at apply time.
func (r *Repository) Save(ctx context.Context, rule Rule) (int64, error) {
	if _, ok := catalog.LookupField(rule.FieldName); !ok {
		return 0, fmt.Errorf("rule field %q: %w", rule.FieldName, catalog.ErrUnknownField)
	}

	if !rule.IsRegex {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO normalization_rules (field_name, original_value, normalized_value, is_regex)
			VALUES (?, ?, ?, 0)
			ON CONFLICT(field_name, original_value) WHERE is_regex = 0
			DO UPDATE SET normalized_value = excluded.normalized_value
		`, rule.FieldName, rule.OriginalValue, rule.NormalizedValue)
		if err != nil {
			return 0, fmt.Errorf("save rule: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("save rule: last insert id: %w", err)
		}
		return id, nil
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO normalization_rules (field_name, original_value, normalized_value, is_regex)
		VALUES (?, ?, ?, 1)
	`, rule.FieldName, rule.OriginalValue, rule.NormalizedValue)
	if err != nil {
		return 0, fmt.Errorf("save regex rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save regex rule: last insert id: %w", err)
	}
	return id, nil
}

// BulkCreate saves one literal rule per variation mapping it to the
// canonical value, skipping the canonical itself. Used to turn an approved
// disambiguation group into rules in one action. Returns the number of
// rules written.
func (r *Repository) BulkCreate(ctx context.Context, field, canonical string, variations []string) (int, error) {
	if _, ok := catalog.LookupField(field); !ok {
		return 0, fmt.Errorf("rule field %q: %w", field, catalog.ErrUnknownField)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("bulk create rules: begin tx: %w", err)
	}
	defer tx.Rollback()

	saved := 0
	for _, v := range variations {
		if v == canonical {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO normalization_rules (field_name, original_value, normalized_value, is_regex)
			VALUES (?, ?, ?, 0)
			ON CONFLICT(field_name, original_value) WHERE is_regex = 0
			DO UPDATE SET normalized_value = excluded.normalized_value
		`, field, v, canonical)
		if err != nil {
			return 0, fmt.Errorf("bulk create rules: save %q: %w", v, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("bulk create rules: commit: %w", err)
	}
	return saved, nil
}

// List returns rules, newest first, optionally filtered by field.
func (r *Repository) List(ctx context.Context, field string) ([]Rule, error) {
	query := `SELECT id, field_name, original_value, normalized_value, is_regex
		FROM normalization_rules`
	var args []any
	if field != "" {
		query += " WHERE field_name = ?"
		args = append(args, field)
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.FieldName, &rule.OriginalValue, &rule.NormalizedValue, &rule.IsRegex); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	if out == nil {
		out = []Rule{}
	}
	return out, nil
}

// Delete removes one rule by ID, or returns catalog.ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM normalization_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, catalog.ErrNotFound)
	}
	return nil
}

// Literal returns the active literal rules for one field as an
// original -> normalized map.
func (r *Repository) Literal(ctx context.Context, field string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT original_value, normalized_value FROM normalization_rules
		WHERE field_name = ? AND is_regex = 0`, field)
	if err != nil {
		return nil, fmt.Errorf("literal rules for %s: %w", field, err)
	}
	defer rows.Close()

	m := map[string]string{}
	for rows.Next() {
		var orig, norm string
		if err := rows.Scan(&orig, &norm); err != nil {
			return nil, fmt.Errorf("scan literal rule: %w", err)
		}
		m[orig] = norm
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate literal rules: %w", err)
	}
	return m, nil
}

// Regex returns the regex rules for one field in creation order. Appliers
// compile each pattern and skip those that fail to compile.
func (r *Repository) Regex(ctx context.Context, field string) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, field_name, original_value, normalized_value, is_regex
		FROM normalization_rules
		WHERE field_name = ? AND is_regex = 1
		ORDER BY id ASC`, field)
	if err != nil {
		return nil, fmt.Errorf("regex rules for %s: %w", field, err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.FieldName, &rule.OriginalValue, &rule.NormalizedValue, &rule.IsRegex); err != nil {
			return nil, fmt.Errorf("scan regex rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regex rules: %w", err)
	}
	return out, nil
}

// ApplyResult reports an ad hoc rule application run.
type ApplyResult struct {
	RulesApplied   int `json:"rules_applied"`
	RecordsUpdated int `json:"records_updated"`
}

// ApplyAll runs every literal rule (optionally scoped to one field) against
// the catalog directly, outside the harmonization pipeline. Only authority
// fields are touched; rules on other fields are counted but skipped, same
// as the upstream behaviour this reproduces.
func (r *Repository) ApplyAll(ctx context.Context, field string) (*ApplyResult, error) {
	ruleList, err := r.List(ctx, field)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply rules: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, rule := range ruleList {
		if rule.IsRegex || !catalog.IsAuthorityField(rule.FieldName) {
			continue
		}
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE products SET %s = ? WHERE %s = ?", rule.FieldName, rule.FieldName),
			rule.NormalizedValue, rule.OriginalValue)
		if err != nil {
			return nil, fmt.Errorf("apply rule %d: %w", rule.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("apply rule %d: rows affected: %w", rule.ID, err)
		}
		res.RecordsUpdated += int(n)
	}
	res.RulesApplied = len(ruleList)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("apply rules: commit: %w", err)
	}
	return res, nil
}
