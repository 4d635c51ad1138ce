package models

import (
	"errors"
	"fmt"
)

// ErrAlertNotFound is returned when an alert id does not exist
var ErrAlertNotFound = errors.New("alert not found")

// ValidationError describes a rejected field on an alert write
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is a validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
