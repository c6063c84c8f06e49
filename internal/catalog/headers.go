package catalog

import "strings"

// HeaderMapping links one source spreadsheet header to its catalog field.
// The source headers are preserved verbatim, misspellings included: several
// exports of the upstream system disagreed on accents and spelling, and the
// importer must recognize every variant it ever produced.
type HeaderMapping struct {
	Header string
	Field  string
}

// ImportColumns maps source headers to fields, in original column order.
// Export reuses this order.
var ImportColumns = []HeaderMapping{
	{"Nombre del Producto", "product_name"},
	{"Clasificación", "classification"},
	{"Tipo de Producto", "product_type"},
	{"¿Posible vender en cantidad decimal?", "is_decimal_sellable"},
	{"¿Controlarás el stock del producto?", "control_stock"},
	{"Estado", "status"},
	{"Impuestos", "taxes"},
	{"Variante", "variant"},
	{"Código universal de producto", "product_code_universal_1"},
	{"Codigo universal", "product_code_universal_2"},
	{"Codigo universal del producto", "product_code_universal_3"},
	{"CODIGO UNIVERSAL DEL PRODRUCTO", "product_code_universal_4"},
	{"marca", "brand_lower"},
	{"Marca", "brand_capitalized"},
	{"modelo", "model"},
	{"GTIN", "gtin"},
	{"Motivo de GTIN", "gtin_reason"},
	{"Motivo de GTIN vacío", "gtin_empty_reason_1"},
	{"Motivo GTIN vacío", "gtin_empty_reason_2"},
	{"Motivo GTIN vacia", "gtin_empty_reason_3"},
	{"Motivo GTIN de producto", "gtin_product_reason"},
	{"motivo GTIN", "gtin_reason_lower"},
	{"Mtivo GTIN vacio", "gtin_empty_reason_typo"},
	{"EQUIMAPIENTO", "equipment"},
	{"MEDIDA", "measure"},
	{"TIPO DE UNION", "union_type"},
	{"¿permitirás ventas sin stock?", "allow_sales_without_stock"},
	{"Código de Barras", "barcode"},
	{"SKU", "sku"},
	{"Sucursales", "branches"},
	{"Fecha de creacion", "creation_date"},
	{"Estado Variante", "variant_status"},
	{"Clave de producto", "product_key"},
	{"Unidad de medida", "unit_of_measure"},
}

var fieldByHeader = func() map[string]string {
	m := make(map[string]string, len(ImportColumns))
	for _, c := range ImportColumns {
		m[c.Header] = c.Field
	}
	return m
}()

// FieldForHeader resolves a source header (whitespace-trimmed) to its
// catalog field name.
func FieldForHeader(header string) (string, bool) {
	f, ok := fieldByHeader[strings.TrimSpace(header)]
	return f, ok
}
