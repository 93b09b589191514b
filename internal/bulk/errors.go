package bulk

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/insight/internal/jobs"
)

var (
	// ErrInvalidRequest indicates a malformed bulk request.
	ErrInvalidRequest = errors.New("invalid bulk request")
	// ErrAllFailed indicates every analysis of a job failed.
	ErrAllFailed = errors.New("all analyses failed")
)

// MapHTTPStatus maps bulk and job errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	return jobs.MapHTTPStatus(err)
}
