// Package apierrors defines the error kinds shared across services and their
// mapping to HTTP statuses. Packages wrap their internal failures with these
// classes; handlers translate them at the boundary.
package apierrors

import (
	"errors"
	"net/http"

	"github.com/zeebo/errs"
)

var (
	// NotFound marks missing resources (404).
	NotFound = errs.Class("not found")
	// PermissionDenied marks authorization failures (403). The message is
	// kept generic so resource existence is not leaked.
	PermissionDenied = errs.Class("permission denied")
	// Conflict marks operations against a resource in the wrong state (409).
	Conflict = errs.Class("state conflict")
	// TooLarge marks size cap violations (413).
	TooLarge = errs.Class("too large")
	// Unavailable marks derived state that has not been built yet (503).
	Unavailable = errs.Class("unavailable")
	// Transient marks retryable backend failures; surfaces as 500 and the
	// task platform retries.
	Transient = errs.Class("transient")
)

// NonFieldErrors is the key used for cross-field validation failures,
// matching the wire format of the original API.
const NonFieldErrors = "non_field_errors"

// ValidationError carries a field -> messages map that serializes directly
// into the form_errors object of the wire protocol.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	for field, msgs := range e.Fields {
		if len(msgs) > 0 {
			return field + ": " + msgs[0]
		}
	}
	return "validation failed"
}

// NewValidation returns an empty validation error builder.
func NewValidation() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add appends a message under the given field.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], msg)
	return e
}

// AddNonField appends a cross-field message.
func (e *ValidationError) AddNonField(msg string) *ValidationError {
	return e.Add(NonFieldErrors, msg)
}

// Err returns the error, or nil when no messages were added.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validation builds a single-message cross-field validation error.
func Validation(msg string) *ValidationError {
	return NewValidation().AddNonField(msg)
}

// FieldValidation builds a single-message validation error for one field.
func FieldValidation(field, msg string) *ValidationError {
	return NewValidation().Add(field, msg)
}

// AsValidation extracts a ValidationError from err if present.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// HTTPStatus maps an error to its wire status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isValidation(err):
		return http.StatusBadRequest
	case PermissionDenied.Has(err):
		return http.StatusForbidden
	case NotFound.Has(err):
		return http.StatusNotFound
	case Conflict.Has(err):
		return http.StatusConflict
	case TooLarge.Has(err):
		return http.StatusRequestEntityTooLarge
	case Unavailable.Has(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isValidation(err error) bool {
	_, ok := AsValidation(err)
	return ok
}
