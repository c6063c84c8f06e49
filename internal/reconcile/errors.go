package reconcile

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a store connection or queue item does not
// exist.
var ErrNotFound = errors.New("not found")

// ConflictError rejects a queue state transition that is no longer valid.
// The operation has no effect when one is returned.
type ConflictError struct {
	// Code identifies the conflict category.
	Code ConflictCode

	// Message is a human-readable description.
	Message string

	// ItemID identifies the affected queue item.
	ItemID int64
}

// ConflictCode categorizes conflict errors.
type ConflictCode string

// CodeAlreadyResolved indicates a resolution was attempted on an item
// that is already in a terminal state.
const CodeAlreadyResolved ConflictCode = "ALREADY_RESOLVED"

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s (item=%d)", e.Code, e.Message, e.ItemID)
}

// IsConflict returns true if the error is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
