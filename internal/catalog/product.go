package catalog

// Validation statuses for a product record.
const (
	ValidationPending = "pending"
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"
)

// Product is one catalog record. Imported columns are kept as plain strings
// ("" meaning absent) exactly as they arrived, save for snake_case renaming
// of the source headers; harmonization steps clean them in place.
//
// ID is immutable and unique. Rows are never destroyed except by explicit
// delete or purge.
type Product struct {
	ID int64

	ProductName       string
	Classification    string
	ProductType       string
	IsDecimalSellable string
	ControlStock      string
	Status            string
	Taxes             string
	Variant           string

	// Universal-code aliases from inconsistent source headers.
	ProductCodeUniversal1 string
	ProductCodeUniversal2 string
	ProductCodeUniversal3 string
	ProductCodeUniversal4 string

	BrandLower       string
	BrandCapitalized string
	Model            string

	GTIN                string
	GTINReason          string
	GTINEmptyReason1    string
	GTINEmptyReason2    string
	GTINEmptyReason3    string
	GTINProductReason   string
	GTINReasonLower     string
	GTINEmptyReasonTypo string

	Equipment string
	Measure   string
	UnionType string

	AllowSalesWithoutStock string
	Barcode                string
	SKU                    string
	Branches               string
	CreationDate           string
	VariantStatus          string
	ProductKey             string
	UnitOfMeasure          string

	ValidationStatus string

	// Scientometric enrichment fields. Populated by an external poller;
	// carried here so exports and manual edits can see them.
	EnrichmentDOI           string
	EnrichmentCitationCount int
	EnrichmentConcepts      string
	EnrichmentSource        string
	EnrichmentStatus        string
}

// Field is a typed accessor/mutator pair for one mutable string field of a
// Product. Transforms and rules address fields through the registry instead
// of reflecting over names, so an unknown field is rejected when the rule or
// step is defined, not when it runs.
type Field struct {
	// Name is the snake_case field identifier, which is also the SQL
	// column name.
	Name string

	Get func(*Product) string
	Set func(*Product, string)
}

// fields lists every mutable string field in declaration order. The order
// is load-bearing: repository scans and UPDATE statements derive their
// column lists from it.
var fields = []Field{
	{"product_name", func(p *Product) string { return p.ProductName }, func(p *Product, v string) { p.ProductName = v }},
	{"classification", func(p *Product) string { return p.Classification }, func(p *Product, v string) { p.Classification = v }},
	{"product_type", func(p *Product) string { return p.ProductType }, func(p *Product, v string) { p.ProductType = v }},
	{"is_decimal_sellable", func(p *Product) string { return p.IsDecimalSellable }, func(p *Product, v string) { p.IsDecimalSellable = v }},
	{"control_stock", func(p *Product) string { return p.ControlStock }, func(p *Product, v string) { p.ControlStock = v }},
	{"status", func(p *Product) string { return p.Status }, func(p *Product, v string) { p.Status = v }},
	{"taxes", func(p *Product) string { return p.Taxes }, func(p *Product, v string) { p.Taxes = v }},
	{"variant", func(p *Product) string { return p.Variant }, func(p *Product, v string) { p.Variant = v }},
	{"product_code_universal_1", func(p *Product) string { return p.ProductCodeUniversal1 }, func(p *Product, v string) { p.ProductCodeUniversal1 = v }},
	{"product_code_universal_2", func(p *Product) string { return p.ProductCodeUniversal2 }, func(p *Product, v string) { p.ProductCodeUniversal2 = v }},
	{"product_code_universal_3", func(p *Product) string { return p.ProductCodeUniversal3 }, func(p *Product, v string) { p.ProductCodeUniversal3 = v }},
	{"product_code_universal_4", func(p *Product) string { return p.ProductCodeUniversal4 }, func(p *Product, v string) { p.ProductCodeUniversal4 = v }},
	{"brand_lower", func(p *Product) string { return p.BrandLower }, func(p *Product, v string) { p.BrandLower = v }},
	{"brand_capitalized", func(p *Product) string { return p.BrandCapitalized }, func(p *Product, v string) { p.BrandCapitalized = v }},
	{"model", func(p *Product) string { return p.Model }, func(p *Product, v string) { p.Model = v }},
	{"gtin", func(p *Product) string { return p.GTIN }, func(p *Product, v string) { p.GTIN = v }},
	{"gtin_reason", func(p *Product) string { return p.GTINReason }, func(p *Product, v string) { p.GTINReason = v }},
	{"gtin_empty_reason_1", func(p *Product) string { return p.GTINEmptyReason1 }, func(p *Product, v string) { p.GTINEmptyReason1 = v }},
	{"gtin_empty_reason_2", func(p *Product) string { return p.GTINEmptyReason2 }, func(p *Product, v string) { p.GTINEmptyReason2 = v }},
	{"gtin_empty_reason_3", func(p *Product) string { return p.GTINEmptyReason3 }, func(p *Product, v string) { p.GTINEmptyReason3 = v }},
	{"gtin_product_reason", func(p *Product) string { return p.GTINProductReason }, func(p *Product, v string) { p.GTINProductReason = v }},
	{"gtin_reason_lower", func(p *Product) string { return p.GTINReasonLower }, func(p *Product, v string) { p.GTINReasonLower = v }},
	{"gtin_empty_reason_typo", func(p *Product) string { return p.GTINEmptyReasonTypo }, func(p *Product, v string) { p.GTINEmptyReasonTypo = v }},
	{"equipment", func(p *Product) string { return p.Equipment }, func(p *Product, v string) { p.Equipment = v }},
	{"measure", func(p *Product) string { return p.Measure }, func(p *Product, v string) { p.Measure = v }},
	{"union_type", func(p *Product) string { return p.UnionType }, func(p *Product, v string) { p.UnionType = v }},
	{"allow_sales_without_stock", func(p *Product) string { return p.AllowSalesWithoutStock }, func(p *Product, v string) { p.AllowSalesWithoutStock = v }},
	{"barcode", func(p *Product) string { return p.Barcode }, func(p *Product, v string) { p.Barcode = v }},
	{"sku", func(p *Product) string { return p.SKU }, func(p *Product, v string) { p.SKU = v }},
	{"branches", func(p *Product) string { return p.Branches }, func(p *Product, v string) { p.Branches = v }},
	{"creation_date", func(p *Product) string { return p.CreationDate }, func(p *Product, v string) { p.CreationDate = v }},
	{"variant_status", func(p *Product) string { return p.VariantStatus }, func(p *Product, v string) { p.VariantStatus = v }},
	{"product_key", func(p *Product) string { return p.ProductKey }, func(p *Product, v string) { p.ProductKey = v }},
	{"unit_of_measure", func(p *Product) string { return p.UnitOfMeasure }, func(p *Product, v string) { p.UnitOfMeasure = v }},
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// LookupField returns the typed accessor pair for a field name.
// The second return is false for unknown or immutable (id, enrichment,
// validation) fields.
func LookupField(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// FieldNames returns every mutable field name in declaration order.
func FieldNames() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// AuthorityFields are the fields eligible for disambiguation and literal
// rule application. Kept as a fixed allow-list: clustering free-text fields
// like descriptions produces noise, not authority groups.
var AuthorityFields = []string{"brand_capitalized", "product_name", "model", "product_type"}

// IsAuthorityField reports whether name is in the authority allow-list.
func IsAuthorityField(name string) bool {
	for _, f := range AuthorityFields {
		if f == name {
			return true
		}
	}
	return false
}
