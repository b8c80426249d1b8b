package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/series"
)

type valueArray[T any] interface {
	arrow.Array
	Value(i int) T
}

type appender[T any] interface {
	array.Builder
	Append(v T)
}

// gather copies src[indices] into b, preserving nulls.
func gather[T any](src valueArray[T], b appender[T], indices []int) arrow.Array {
	defer b.Release()
	b.Reserve(len(indices))
	for _, i := range indices {
		if src.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(src.Value(i))
	}
	return b.NewArray()
}

func takeArray(arr arrow.Array, indices []int, mem memory.Allocator) (arrow.Array, error) {
	switch a := arr.(type) {
	case *array.String:
		return gather[string](a, array.NewStringBuilder(mem), indices), nil
	case *array.Int64:
		return gather[int64](a, array.NewInt64Builder(mem), indices), nil
	case *array.Float64:
		return gather[float64](a, array.NewFloat64Builder(mem), indices), nil
	case *array.Boolean:
		return gather[bool](a, array.NewBooleanBuilder(mem), indices), nil
	case *array.Date32:
		return gather[arrow.Date32](a, array.NewDate32Builder(mem), indices), nil
	case *array.Timestamp:
		dt := a.DataType().(*arrow.TimestampType)
		return gather[arrow.Timestamp](a, array.NewTimestampBuilder(mem, dt), indices), nil
	default:
		return nil, fmt.Errorf("unsupported array type %s", arr.DataType())
	}
}

// Typed returns the named column as a *series.Series[T], or an error naming
// op when the column is absent or holds a different type.
func Typed[T series.Value](df *DataFrame, op, name string) (*series.Series[T], error) {
	s, ok := df.Column(name)
	if !ok {
		return nil, errors.NewColumnNotFoundError(op, name)
	}
	typed, ok := s.(*series.Series[T])
	if !ok {
		var zero T
		return nil, errors.NewTypeMismatchError(op, name, fmt.Sprintf("%T", zero), s.DataType().String())
	}
	return typed, nil
}
