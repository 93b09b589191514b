package agents

import "errors"

var (
	// ErrSynthesisFailed indicates no executable read query could be produced.
	ErrSynthesisFailed = errors.New("query synthesis failed")
	// ErrExecutionFailed indicates execution failed and every fallback attempt was exhausted.
	ErrExecutionFailed = errors.New("query execution failed")
	// ErrNotConcrete indicates a specialized agent was requested for a non-concrete source.
	ErrNotConcrete = errors.New("specialized agents require a concrete data source")
	// ErrMissingDependency indicates an agent was built without a required collaborator.
	ErrMissingDependency = errors.New("agent dependency missing")
	// ErrPanic indicates an agent run panicked and was recovered.
	ErrPanic = errors.New("agent panicked")
)
