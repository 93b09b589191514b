// Package completion defines the text-completion capability used by the
// insight pipeline: prompt text in, text out. Callers own prompt construction
// and response parsing; this package owns transport, timeouts and providers.
package completion

import (
	"context"
	"errors"
)

// Sentinel errors for completion calls.
var (
	ErrUnavailable   = errors.New("completion unavailable")
	ErrEmptyResponse = errors.New("completion returned no content")
)

// Request is a single completion call.
// System carries stage instructions; Prompt carries the user-facing payload.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Client produces a completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Client interface.
type Func func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Unavailable is a Client that always fails with ErrUnavailable.
// It stands in when no provider is configured.
var Unavailable Client = Func(func(ctx context.Context, req Request) (string, error) {
	return "", ErrUnavailable
})
