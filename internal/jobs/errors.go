package jobs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/insight/pkg/repository"
)

// Domain errors for job operations.
var (
	ErrNotFound          = errors.New("job not found")
	ErrDuplicate         = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrTerminal          = errors.New("job already finished")
	ErrInvalidRequest    = errors.New("invalid job request")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// MapHTTPStatus maps job domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrTerminal) || errors.Is(err, ErrInvalidTransition) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, repository.ErrConstraint) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
