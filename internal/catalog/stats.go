package catalog

import (
	"context"
	"fmt"
)

// NameCount is a (value, occurrences) pair for distribution listings.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes the catalog for the operator dashboard.
type Stats struct {
	TotalProducts      int            `json:"total_products"`
	UniqueBrands       int            `json:"unique_brands"`
	UniqueModels       int            `json:"unique_models"`
	UniqueProductTypes int            `json:"unique_product_types"`
	ValidationStatus   map[string]int `json:"validation_status"`
	WithSKU            int            `json:"with_sku"`
	WithBarcode        int            `json:"with_barcode"`
	WithGTIN           int            `json:"with_gtin"`
	TopBrands          []NameCount    `json:"top_brands"`
	TypeDistribution   []NameCount    `json:"type_distribution"`
}

// Stats computes catalog summary counts in one pass per aggregate.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{ValidationStatus: map[string]int{}}

	scalars := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM products", &s.TotalProducts},
		{"SELECT COUNT(DISTINCT brand_capitalized) FROM products WHERE brand_capitalized IS NOT NULL AND brand_capitalized != ''", &s.UniqueBrands},
		{"SELECT COUNT(DISTINCT model) FROM products WHERE model IS NOT NULL AND model != ''", &s.UniqueModels},
		{"SELECT COUNT(DISTINCT product_type) FROM products WHERE product_type IS NOT NULL AND product_type != ''", &s.UniqueProductTypes},
		{"SELECT COUNT(*) FROM products WHERE sku IS NOT NULL AND sku != ''", &s.WithSKU},
		{"SELECT COUNT(*) FROM products WHERE barcode IS NOT NULL AND barcode != ''", &s.WithBarcode},
		{"SELECT COUNT(*) FROM products WHERE gtin IS NOT NULL AND gtin != ''", &s.WithGTIN},
	}
	for _, sc := range scalars {
		if err := r.db.QueryRowContext(ctx, sc.query).Scan(sc.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(validation_status, 'pending'), COUNT(*)
		FROM products GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("stats: validation breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("stats: scan validation: %w", err)
		}
		s.ValidationStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: iterate validation: %w", err)
	}

	s.TopBrands, err = r.topCounts(ctx, "brand_capitalized", 10)
	if err != nil {
		return nil, err
	}
	s.TypeDistribution, err = r.topCounts(ctx, "product_type", 10)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (r *Repository) topCounts(ctx context.Context, field string, limit int) ([]NameCount, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) AS n FROM products
		WHERE %s IS NOT NULL AND %s != ''
		GROUP BY %s ORDER BY n DESC, %s ASC LIMIT ?`,
		field, field, field, field, field), limit)
	if err != nil {
		return nil, fmt.Errorf("stats: top %s: %w", field, err)
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("stats: scan top %s: %w", field, err)
		}
		out = append(out, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: iterate top %s: %w", field, err)
	}
	if out == nil {
		out = []NameCount{}
	}
	return out, nil
}
