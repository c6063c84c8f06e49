package harmonize

import (
	"errors"
	"fmt"
)

// ConflictError represents a rejected state transition on the audit log or
// an inconsistency detected before mutating anything.
//
// Conflict errors include:
//   - Undo of an entry that is already reverted
//   - Redo of an entry that is not reverted
//   - Undo of an entry reporting updated records but holding no change rows
//
// The operation has no effect when a ConflictError is returned.
type ConflictError struct {
	// Code identifies the conflict category.
	Code ConflictCode

	// Message is a human-readable description.
	Message string

	// LogID identifies the affected audit log entry.
	LogID int64
}

// ConflictCode categorizes conflict errors.
type ConflictCode string

const (
	// CodeAlreadyReverted indicates undo was called on a reverted entry.
	CodeAlreadyReverted ConflictCode = "ALREADY_REVERTED"

	// CodeNotReverted indicates redo was called on an entry that is applied.
	CodeNotReverted ConflictCode = "NOT_REVERTED"

	// CodeInconsistentLog indicates an entry reports updated records but
	// holds zero change records, so an exact undo is impossible.
	CodeInconsistentLog ConflictCode = "INCONSISTENT_LOG"
)

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.LogID != 0 {
		return fmt.Sprintf("%s: %s (log=%d)", e.Code, e.Message, e.LogID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConflict returns true if the error is a ConflictError.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// ValidationError rejects a request before any side effect: an unknown
// step, an unsupported field, malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewUnknownStepError creates the validation error for an unknown step ID.
func NewUnknownStepError(stepID string) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf("unknown harmonization step %q", stepID)}
}
