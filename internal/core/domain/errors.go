// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError is a client-side validation error attached to a specific
// filter or form field. It blocks submission but must not destroy data
// already displayed.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Message)
}

// NewFieldError creates a validation error for a named field.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

// StatusError is a backend error carrying the HTTP status the platform
// API answered with. Cascade logic classifies some statuses as
// ignorable; everything else is a hard error.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// DefaultIgnorableStatuses is the allowlist used by the payment-type
// cascade: statuses meaning "the identifier was not what we guessed",
// which trigger an alternate resolution path instead of a user alert.
var DefaultIgnorableStatuses = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
}

// IsIgnorableStatus reports whether err is a StatusError whose status
// appears in the given allowlist.
func IsIgnorableStatus(err error, allow []int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, s := range allow {
		if se.Status == s {
			return true
		}
	}
	return false
}

// ErrUnsupported marks an operation a fetcher implementation does not
// provide (the direct-database fetcher cannot perform payments).
var ErrUnsupported = errors.New("operation not supported by this fetcher")

// ErrSessionClosed is returned by controller operations after Close.
var ErrSessionClosed = errors.New("search session is closed")
