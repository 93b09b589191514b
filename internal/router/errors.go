package router

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/insight/internal/sources"
)

// ErrInvalidRequest indicates a malformed analysis request.
var ErrInvalidRequest = errors.New("invalid analysis request")

// MapHTTPStatus maps router request errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, sources.ErrUnknownSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
