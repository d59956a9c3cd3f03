package assoc

import "errors"

// Input errors are caller-correctable and raised before any mutation.
// ErrStaleIndex signals a caller protocol violation: scoring against an
// index that has not been rebuilt since the collection changed.
var (
	ErrEmptyInput       = errors.New("assoc: empty input")
	ErrDuplicateID      = errors.New("assoc: duplicate object id")
	ErrInsufficientData = errors.New("assoc: insufficient data")
	ErrStaleIndex       = errors.New("assoc: spatial index is stale; call RebuildIndex before scoring")
)
