package document

import "errors"

// Common annotation container errors.
var (
	ErrNotFound      = errors.New("annotation not found")
	ErrDuplicate     = errors.New("annotation already added")
	ErrReservedLabel = errors.New("label reserved for the raw segment")
)
