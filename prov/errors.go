package prov

import "errors"

// Common provenance errors.
var (
	// ErrNotFound is returned when no node exists for a data item id.
	ErrNotFound = errors.New("provenance node not found")

	// ErrDuplicate is returned when provenance is recorded twice for the
	// same data item.
	ErrDuplicate = errors.New("provenance already recorded")

	// ErrOpMismatch is returned when a composite operation claims an item
	// that is already attributed to a different operation.
	ErrOpMismatch = errors.New("data item attributed to a different operation")

	// ErrUntracedOutput is returned when a composite operation reports an
	// output its own sub-tracer never saw.
	ErrUntracedOutput = errors.New("output item not traced by sub-tracer")
)
