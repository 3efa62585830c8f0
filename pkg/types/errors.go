package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	// Document errors
	ErrMissingDocumentID = errors.New("document id is required")
	ErrMissingSourcePath = errors.New("document source path is required")
	ErrMissingFileName   = errors.New("document file name is required")
	ErrNegativeFileSize  = errors.New("file size cannot be negative")

	// ErrQueryValidation is wrapped by every search query rejection
	ErrQueryValidation = errors.New("invalid search query")
)

// ValidationError describes a rejected search parameter
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrQueryValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
