package model

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input at the engine boundary
type ValidationError struct {
	Field  string // Field path the problem was found at (may be empty)
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
