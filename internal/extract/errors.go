package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required element or attribute is absent.
	ErrMissingField = errors.New("required field is missing")

	// ErrInvalidField is returned when a field is present but cannot be parsed.
	ErrInvalidField = errors.New("field has an invalid value")
)

// FieldError names the field that could not be extracted.
type FieldError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap returns ErrMissingField or a wrapped ErrInvalidField.
func (e *FieldError) Unwrap() error {
	return e.Err
}

func missing(field string) error {
	return &FieldError{Field: field, Err: ErrMissingField}
}

func invalid(field string, err error) error {
	return &FieldError{Field: field, Err: fmt.Errorf("%w: %w", ErrInvalidField, err)}
}
