// Package errors provides standardized error types and helpers for the
// capo codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrMalformedInput indicates byte-level malformed input that no
	// amount of lenient recovery can get past (non-UTF-8 bytes, brace
	// nesting beyond the configured bound)
	ErrMalformedInput = errors.New("malformed input")
	// ErrStrictParse indicates a diagnostic escalated to a failure in
	// strict parse mode
	ErrStrictParse = errors.New("strict parse failure")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "song", "playlist", "bundle")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// MalformedInputError represents input the tokenizer cannot scan at all.
// It is always fatal, in both lenient and strict parse modes.
type MalformedInputError struct {
	Reason string // What is malformed (e.g., "not valid UTF-8")
	Line   int    // 1-indexed source line, 0 if not line-specific
	Err    error  // Underlying error, if any
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedInput
}

// StrictParseError carries the diagnostic that terminated a strict-mode
// parse. It holds the same structured information a lenient parse would
// have returned as a diagnostic.
type StrictParseError struct {
	Kind    string // Diagnostic kind (e.g., "unbalanced_section")
	Line    int    // 1-indexed source line
	Context string // Offending text or short description
}

func (e *StrictParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("strict parse failed at line %d: %s: %s", e.Line, e.Kind, e.Context)
	}
	return fmt.Sprintf("strict parse failed at line %d: %s", e.Line, e.Kind)
}

func (e *StrictParseError) Unwrap() error {
	return ErrStrictParse
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewMalformedInput creates a MalformedInputError
func NewMalformedInput(reason string, line int) *MalformedInputError {
	return &MalformedInputError{
		Reason: reason,
		Line:   line,
	}
}

// NewStrictParse creates a StrictParseError
func NewStrictParse(kind string, line int, context string) *StrictParseError {
	return &StrictParseError{
		Kind:    kind,
		Line:    line,
		Context: context,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}
