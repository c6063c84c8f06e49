package harmonize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harmon-data/harmon/internal/catalog"
)

// Export header revisions. The import headers carry known source
// misspellings; exports should not reproduce them. Instead of mutating a
// shared header map in place, the corrections are a fixed revision: the
// fix_export_typos step activates revision 1, undo deactivates it, and the
// active revision is derived from the audit log rather than stored twice.
const (
	// ExportRevisionImported exports the headers exactly as imported.
	ExportRevisionImported = 0
	// ExportRevisionCorrected exports with the known misspellings fixed.
	ExportRevisionCorrected = 1
)

// exportCorrections maps misspelled import headers to their corrected
// export labels. Fixed at compile time; applying the step twice changes
// nothing.
var exportCorrections = map[string]string{
	"CODIGO UNIVERSAL DEL PRODRUCTO": "CODIGO UNIVERSAL DEL PRODUCTO",
	"Mtivo GTIN vacio":               "Motivo GTIN vacío",
	"Motivo GTIN vacia":              "Motivo GTIN vacía",
	"EQUIMAPIENTO":                   "EQUIPAMIENTO",
	"Fecha de creacion":              "Fecha de creación",
}

// ExportHeaders returns the export column headers in original column order
// for the given revision.
func ExportHeaders(revision int) []string {
	headers := make([]string, len(catalog.ImportColumns))
	for i, c := range catalog.ImportColumns {
		h := c.Header
		if revision >= ExportRevisionCorrected {
			if fixed, ok := exportCorrections[h]; ok {
				h = fixed
			}
		}
		headers[i] = h
	}
	return headers
}

// runFixExportTypos activates the corrected export headers. It never
// touches record data, so it emits no change records; the log entry's
// details list the corrected labels. A second application is a no-op.
func runFixExportTypos(ctx context.Context, e *env) ([]Change, string, error) {
	if e.exportCorrected {
		return nil, "export headers already corrected", nil
	}

	fixed := make([]string, 0, len(exportCorrections))
	for from, to := range exportCorrections {
		fixed = append(fixed, fmt.Sprintf("%s -> %s", from, to))
	}
	sort.Strings(fixed)
	return nil, "corrected export headers: " + strings.Join(fixed, "; "), nil
}
