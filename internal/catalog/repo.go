package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repository methods that must participate in a caller's transaction
// (step apply, undo/redo) take it explicitly.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides access to the products table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a product repository backed by db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// selectColumns is the fixed column list for product scans, derived from the
// field registry so scan order can never drift from the declaration order.
var selectColumns = func() string {
	cols := make([]string, 0, len(fields)+3)
	cols = append(cols, "id")
	for _, f := range fields {
		cols = append(cols, fmt.Sprintf("COALESCE(%s, '')", f.Name))
	}
	cols = append(cols,
		"COALESCE(validation_status, 'pending')",
		"enrichment_citation_count",
		"COALESCE(enrichment_doi, '')",
		"COALESCE(enrichment_concepts, '')",
		"COALESCE(enrichment_source, '')",
		"COALESCE(enrichment_status, 'none')",
	)
	return strings.Join(cols, ", ")
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	vals := make([]string, len(fields))

	dest := make([]any, 0, len(fields)+7)
	dest = append(dest, &p.ID)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	dest = append(dest,
		&p.ValidationStatus,
		&p.EnrichmentCitationCount,
		&p.EnrichmentDOI,
		&p.EnrichmentConcepts,
		&p.EnrichmentSource,
		&p.EnrichmentStatus,
	)

	if err := row.Scan(dest...); err != nil {
		return Product{}, err
	}
	for i, f := range fields {
		f.Set(&p, vals[i])
	}
	return p, nil
}

// BulkImport inserts records in one transaction and returns the number of
// rows written. Imported values land verbatim; cleaning is the
// harmonization pipeline's job.
func (r *Repository) BulkImport(ctx context.Context, records []Product) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
		marks[i] = "?"
	}
	query := fmt.Sprintf(
		"INSERT INTO products (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(marks, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("bulk import: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("bulk import: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		args := make([]any, len(fields))
		for j, f := range fields {
			args[j] = f.Get(&records[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("bulk import: insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("bulk import: commit: %w", err)
	}
	return len(records), nil
}

// Get returns one product by ID, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM products WHERE id = ?", selectColumns), id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// All returns every product ordered by id ASC. Step execution depends on
// this ordering for deterministic change lists.
func (r *Repository) All(ctx context.Context) ([]Product, error) {
	return r.query(ctx,
		fmt.Sprintf("SELECT %s FROM products ORDER BY id ASC", selectColumns))
}

// Matching returns every product matching the search term, in id order.
// A blank term returns the full catalog.
func (r *Repository) Matching(ctx context.Context, search string) ([]Product, error) {
	if search == "" {
		return r.All(ctx)
	}
	like := "%" + search + "%"
	return r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM products
			WHERE product_name LIKE ? OR brand_capitalized LIKE ? OR model LIKE ? OR sku LIKE ?
			ORDER BY id ASC`, selectColumns),
		like, like, like, like)
}

// List returns a page of products, optionally filtered by a search term
// matched against name, brand, model, and SKU.
func (r *Repository) List(ctx context.Context, search string, offset, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	if search == "" {
		return r.query(ctx,
			fmt.Sprintf("SELECT %s FROM products ORDER BY id ASC LIMIT ? OFFSET ?", selectColumns),
			limit, offset)
	}
	like := "%" + search + "%"
	return r.query(ctx,
		fmt.Sprintf(`SELECT %s FROM products
			WHERE product_name LIKE ? OR brand_capitalized LIKE ? OR model LIKE ? OR sku LIKE ?
			ORDER BY id ASC LIMIT ? OFFSET ?`, selectColumns),
		like, like, like, like, limit, offset)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// UpdateFields sets the named fields on one product. Field names are
// validated against the registry before any write.
func (r *Repository) UpdateFields(ctx context.Context, id int64, updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}
	for name := range updates {
		if _, ok := LookupField(name); !ok {
			return fmt.Errorf("field %q: %w", name, ErrUnknownField)
		}
	}

	// Iterate the registry, not the map, for a stable statement shape.
	var sets []string
	var args []any
	for _, f := range fields {
		if v, ok := updates[f.Name]; ok {
			sets = append(sets, f.Name+" = ?")
			args = append(args, v)
		}
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE products SET %s WHERE id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetField writes one field on one product using the caller's transaction.
// The field name must already be registry-validated. Returns false when the
// record no longer exists (deleted since the change was logged).
func (r *Repository) SetField(ctx context.Context, tx DBTX, id int64, field, value string) (bool, error) {
	if _, ok := LookupField(field); !ok {
		return false, fmt.Errorf("field %q: %w", field, ErrUnknownField)
	}
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE products SET %s = ? WHERE id = ?", field), value, id)
	if err != nil {
		return false, fmt.Errorf("set %s on product %d: %w", field, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set %s on product %d: rows affected: %w", field, id, err)
	}
	return n > 0, nil
}

// Delete removes one product, or returns ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// PurgeAll deletes every product and, optionally, every normalization rule.
// Returns (products deleted, rules deleted).
func (r *Repository) PurgeAll(ctx context.Context, includeRules bool) (int64, int64, error) {
	var products, rules int64

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("purge: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM products")
	if err != nil {
		return 0, 0, fmt.Errorf("purge products: %w", err)
	}
	products, _ = res.RowsAffected()

	if includeRules {
		res, err = tx.ExecContext(ctx, "DELETE FROM normalization_rules")
		if err != nil {
			return 0, 0, fmt.Errorf("purge rules: %w", err)
		}
		rules, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("purge: commit: %w", err)
	}
	return products, rules, nil
}

// DistinctValues returns the distinct non-blank values of one field,
// ordered lexically for deterministic downstream clustering. The field must
// be in the mutable-field registry.
func (r *Repository) DistinctValues(ctx context.Context, field string) ([]string, error) {
	if _, ok := LookupField(field); !ok {
		return nil, fmt.Errorf("field %q: %w", field, ErrUnknownField)
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %s FROM products WHERE %s IS NOT NULL AND %s != '' ORDER BY %s ASC",
		field, field, field, field))
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", field, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct %s: %w", field, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
