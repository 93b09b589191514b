package fallback

import "errors"

var (
	ErrExhausted     = errors.New("fallback attempts exhausted")
	ErrOutOfOrder    = errors.New("fallback attempt out of order")
	ErrNoStrategy    = errors.New("no untried fallback strategy")
	ErrEmptyRewrite  = errors.New("rewrite produced no query")
	ErrNoSchemaOwner = errors.New("fallback requires a concrete data source")
)
