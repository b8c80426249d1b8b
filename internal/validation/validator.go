// Package validation holds the precondition checks of the cleaning stages:
// column existence, column types, mask lengths and numeric minimums.
package validation

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider is the part of a table the validators look at.
type ColumnProvider interface {
	HasColumn(name string) bool
	Column(name string) (dataframe.ISeries, bool)
	Len() int
}

// ColumnValidator validates column existence
type ColumnValidator struct {
	df      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for column operations
func NewColumnValidator(df ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{
		df:      df,
		columns: columns,
		op:      op,
	}
}

// Validate checks if all columns exist in the table
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return errors.NewColumnNotFoundError(v.op, column)
		}
	}
	return nil
}

// ColumnTypeValidator validates the Arrow type of a column.
type ColumnTypeValidator struct {
	df     ColumnProvider
	column string
	want   arrow.DataType
	op     string
}

// NewColumnTypeValidator creates a validator requiring column to hold want.
func NewColumnTypeValidator(df ColumnProvider, op, column string, want arrow.DataType) *ColumnTypeValidator {
	return &ColumnTypeValidator{
		df:     df,
		column: column,
		want:   want,
		op:     op,
	}
}

// Validate checks that the column exists and holds the wanted type
func (v *ColumnTypeValidator) Validate() error {
	s, ok := v.df.Column(v.column)
	if !ok {
		return errors.NewColumnNotFoundError(v.op, v.column)
	}
	if !arrow.TypeEqual(s.DataType(), v.want) {
		return errors.NewTypeMismatchError(v.op, v.column, v.want.String(), s.DataType().String())
	}
	return nil
}

// LengthValidator validates array length consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		message := fmt.Sprintf("%s: expected length %d, got %d", v.context, v.expected, v.actual)
		return errors.NewValidationError(v.op, "", message)
	}
	return nil
}

// MinValidator validates that a setting is at least a minimum.
type MinValidator struct {
	value  int
	min    int
	op     string
	column string
	what   string
}

// NewMinValidator creates a validator requiring value >= min. what names the
// setting in the error message.
func NewMinValidator(value, minimum int, op, column, what string) *MinValidator {
	return &MinValidator{
		value:  value,
		min:    minimum,
		op:     op,
		column: column,
		what:   what,
	}
}

// Validate checks the lower bound
func (v *MinValidator) Validate() error {
	if v.value < v.min {
		message := fmt.Sprintf("%s must be at least %d, got %d", v.what, v.min, v.value)
		return errors.NewValidationError(v.op, v.column, message)
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumns is a convenience function for column validation
func ValidateColumns(df ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(df, op, columns...).Validate()
}

// ValidateColumnType is a convenience function for column type validation
func ValidateColumnType(df ColumnProvider, op, column string, want arrow.DataType) error {
	return NewColumnTypeValidator(df, op, column, want).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}
