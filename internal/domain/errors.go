package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during certificate verification.
var (
	// ErrEmptyValue indicates that a required value is empty.
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrExtractionFailed indicates that no text extraction could run at all,
	// for example because the source image is unreadable.
	ErrExtractionFailed = errors.New("certificate text extraction failed")

	// ErrIllegalTransition indicates a coordinator stage change that the
	// state machine does not allow.
	ErrIllegalTransition = errors.New("illegal stage transition")
)

// ExtractionError records which extraction step failed and on which file.
type ExtractionError struct {
	// Step names the failing step, e.g. "decode" or "preprocess:default".
	Step string

	// Path is the image involved.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ExtractionError.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error: step=%s, path=%s, err=%v", e.Step, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExtractionFailed) match any ExtractionError.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtractionFailed }

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(step, path string, err error) *ExtractionError {
	return &ExtractionError{Step: step, Path: path, Err: err}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match ErrEmptyValue.
func (e *ValidationError) Unwrap() error { return ErrEmptyValue }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
