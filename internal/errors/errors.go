// Package errors defines the error taxonomy of a cleaning run.
//
// Input errors (NotFoundError, FormatError, SchemaError) abort a run before
// anything is written. ConfigError is raised while validating configuration,
// before any stage runs. DataFrameError reports misuse of table operations
// such as selecting a column that does not exist.
//
// Dirty rows are never errors: they are reported as violation masks and counts.
package errors

import (
	"fmt"
)

// DataFrameError reports a failed table operation.
type DataFrameError struct {
	Op      string // Operation name (e.g., "Take", "Deduplicate", "Collapse")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *DataFrameError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *DataFrameError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is()
func (e *DataFrameError) Is(target error) bool {
	if df, ok := target.(*DataFrameError); ok {
		return e.Op == df.Op && e.Column == df.Column && e.Message == df.Message
	}
	return false
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewTypeMismatchError creates an error for a column holding an unexpected Arrow type.
func NewTypeMismatchError(op, column, want, got string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("expected %s column, got %s", want, got),
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Message: message,
	}
}

// NewValidationError creates an error for input validation failures
func NewValidationError(op, column, message string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// ErrMismatchedLength indicates length mismatches between a table and a row mask.
var ErrMismatchedLength = &DataFrameError{
	Op:      "validation",
	Message: "arrays must have the same length",
}

// NotFoundError is returned when an input path does not exist.
type NotFoundError struct {
	Path  string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("input not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// FormatError is returned when an input file cannot be parsed in the requested format.
type FormatError struct {
	Path   string
	Format string
	Cause  error
}

func (e *FormatError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s is not a valid %s file", e.Path, e.Format)
	}
	return fmt.Sprintf("%s is not a valid %s file: %v", e.Path, e.Format, e.Cause)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// SchemaError is returned when a parsed file violates the declared dataset schema.
// Row is the 1-based data row of the offending value, or 0 for column level problems.
type SchemaError struct {
	Column   string
	Expected string
	Actual   string
	Row      int
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("schema mismatch in column '%s' at row %d: expected %s, got %q",
			e.Column, e.Row, e.Expected, e.Actual)
	}
	return fmt.Sprintf("schema mismatch in column '%s': expected %s, got %s", e.Column, e.Expected, e.Actual)
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}
