package catalog

import "errors"

// ErrNotFound is returned when a product row does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownField is returned when a field name is not in the registry.
// Callers hit this at rule-creation or request-validation time, never
// mid-apply: every apply path validates field names up front.
var ErrUnknownField = errors.New("unknown field")
