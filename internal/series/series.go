// Package series provides typed, Arrow-backed columns with explicit missing values.
package series

import (
	"fmt"
	"reflect"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cast"
)

// Layouts used when rendering temporal values as text.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"

	// NullString is how a missing cell is rendered in reports.
	NullString = "NaN"
)

// TimestampType is the Arrow type of every timestamp column: millisecond
// precision without a zone, which round-trips through Parquet unchanged.
var TimestampType = &arrow.TimestampType{Unit: arrow.Millisecond}

// Value lists the element types a Series can hold.
type Value interface {
	string | int64 | float64 | bool | arrow.Date32 | arrow.Timestamp
}

// Erased is the type-erased view shared by every Series instantiation.
type Erased interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	NullN() int
	String() string
	Array() arrow.Array
	Release()
	GetAsString(index int) string
	Rename(name string) Erased
}

// Series represents a typed data column with Apache Arrow backend
type Series[T Value] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values, all of them present.
func New[T Value](name string, values []T, mem memory.Allocator) *Series[T] {
	return NewNullable(name, values, nil, mem)
}

// NewNullable creates a Series where valid[i] == false marks values[i] as missing.
// A nil valid slice means every value is present.
func NewNullable[T Value](name string, values []T, valid []bool, mem memory.Allocator) *Series[T] {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if valid != nil && len(valid) != len(values) {
		panic(fmt.Sprintf("series %s: %d values but %d validity flags", name, len(values), len(valid)))
	}

	var arr arrow.Array

	switch v := any(values).(type) {
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []arrow.Date32:
		builder := array.NewDate32Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []arrow.Timestamp:
		builder := array.NewTimestampBuilder(mem, TimestampType)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	default:
		panic(fmt.Sprintf("unsupported type: %T", values))
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}
}

// FromArray wraps an existing Arrow array without copying it. The array is
// retained, so the caller keeps its own reference.
func FromArray(name string, arr arrow.Array) (Erased, error) {
	switch arr.(type) {
	case *array.String:
		return wrap[string](name, arr), nil
	case *array.Int64:
		return wrap[int64](name, arr), nil
	case *array.Float64:
		return wrap[float64](name, arr), nil
	case *array.Boolean:
		return wrap[bool](name, arr), nil
	case *array.Date32:
		return wrap[arrow.Date32](name, arr), nil
	case *array.Timestamp:
		return wrap[arrow.Timestamp](name, arr), nil
	default:
		return nil, fmt.Errorf("unsupported array type %s for column %s", arr.DataType(), name)
	}
}

func wrap[T Value](name string, arr arrow.Array) *Series[T] {
	arr.Retain()
	return &Series[T]{name: name, array: arr}
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Rename returns a series with the same data under a new name.
func (s *Series[T]) Rename(name string) Erased {
	return wrap[T](name, s.array)
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// NullN returns the number of missing values.
func (s *Series[T]) NullN() int {
	return s.array.NullN()
}

// Value returns the value at the given index, or the zero value when the
// index is out of range or the cell is missing.
func (s *Series[T]) Value(index int) T {
	var zero T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return zero
	}

	switch arr := s.array.(type) {
	case *array.String:
		return any(arr.Value(index)).(T)
	case *array.Int64:
		return any(arr.Value(index)).(T)
	case *array.Float64:
		return any(arr.Value(index)).(T)
	case *array.Boolean:
		return any(arr.Value(index)).(T)
	case *array.Date32:
		return any(arr.Value(index)).(T)
	case *array.Timestamp:
		return any(arr.Value(index)).(T)
	}
	return zero
}

// Values returns the data as a Go slice; missing cells hold the zero value.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())
	for i := range result {
		result[i] = s.Value(i)
	}
	return result
}

// Validity returns one flag per row, false where the cell is missing.
func (s *Series[T]) Validity() []bool {
	valid := make([]bool, s.array.Len())
	for i := range valid {
		valid[i] = s.array.IsValid(i)
	}
	return valid
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// GetAsString renders the value at index for reports and row hashing.
func (s *Series[T]) GetAsString(index int) string {
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return NullString
	}
	switch v := any(s.Value(index)).(type) {
	case arrow.Date32:
		return v.ToTime().Format(DateLayout)
	case arrow.Timestamp:
		return v.ToTime(arrow.Millisecond).Format(TimestampLayout)
	default:
		return cast.ToString(v)
	}
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d, nulls=%d)",
		reflect.TypeOf(new(T)).Elem().Name(),
		s.name,
		s.Len(),
		s.NullN())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}

// DateOf converts a calendar date to its Arrow representation.
func DateOf(t time.Time) arrow.Date32 {
	return arrow.Date32FromTime(t)
}

// TimestampOf converts a wall-clock time to a millisecond Arrow timestamp.
// The zone is dropped: the stored value is the wall-clock reading.
func TimestampOf(t time.Time) arrow.Timestamp {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return arrow.Timestamp(wall.UnixMilli())
}
