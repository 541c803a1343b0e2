package inventory

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any 401 from the backend.
	ErrUnauthorized = errors.New("inventory: unauthorized")
	// ErrForbidden matches any 403 from the backend.
	ErrForbidden = errors.New("inventory: forbidden")
	// ErrNotFound matches any 404 from the backend.
	ErrNotFound = errors.New("inventory: not found")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inventory: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("inventory: HTTP %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is match the status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an
// *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
