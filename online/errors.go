package online

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidResponse is returned when a service response cannot be decoded.
	ErrInvalidResponse = errors.New("invalid service response")

	// ErrNoGeocoders is returned by a Chain without geocoders.
	ErrNoGeocoders = errors.New("no geocoders configured")
)

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// Retryable reports whether the status signals a temporary overload.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
