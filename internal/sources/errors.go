package sources

import "errors"

// Sentinel errors for source routing.
var (
	ErrUnknownSource = errors.New("unknown data source")
	ErrNoSchema      = errors.New("data source has no schema")
	ErrNotReadOnly   = errors.New("query is not a read-only statement")
	ErrEmptyQuery    = errors.New("query is empty")
)
