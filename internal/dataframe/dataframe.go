// Package dataframe provides the in-memory table every cleaning stage works on.
//
// A DataFrame is an ordered set of equally long, Arrow-backed columns. Every
// operation returns a new DataFrame holding its own references, so the input
// and the output can be released independently.
package dataframe

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/series"
)

// DataFrame represents a table of data with typed columns
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries. The DataFrame takes
// ownership of the series.
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		if _, dup := columns[name]; !dup {
			order = append(order, name)
		}
		columns[name] = s
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	if len(df.order) == 0 {
		return []string{}
	}
	return append([]string(nil), df.order...)
}

// Len returns the number of rows
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	series, exists := df.columns[name]
	return series, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// Select returns a new DataFrame with only the specified columns, in the
// requested order.
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		s, exists := df.columns[name]
		if !exists {
			releaseAll(selected)
			return nil, errors.NewColumnNotFoundError("Select", name)
		}
		selected = append(selected, share(s))
	}
	return New(selected...), nil
}

// Drop returns a new DataFrame without the specified columns. Unknown names
// are ignored.
func (df *DataFrame) Drop(names ...string) *DataFrame {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[name] = true
	}

	kept := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		if !dropSet[name] {
			kept = append(kept, share(df.columns[name]))
		}
	}
	return New(kept...)
}

// WithColumn returns a new DataFrame where s replaces the column of the same
// name in place, or is appended when no such column exists. The new
// DataFrame takes ownership of s.
func (df *DataFrame) WithColumn(s ISeries) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, errors.NewValidationError("WithColumn", s.Name(),
			fmt.Sprintf("column has %d rows, table has %d", s.Len(), df.Len()))
	}

	out := make([]ISeries, 0, len(df.order)+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			out = append(out, s)
			replaced = true
			continue
		}
		out = append(out, share(df.columns[name]))
	}
	if !replaced {
		out = append(out, s)
	}
	return New(out...), nil
}

// Take returns a new DataFrame holding the rows at the given indices, in
// that order. Missing values are preserved.
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	n := df.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.NewValidationError("Take", "",
				fmt.Sprintf("index %d out of bounds [0, %d)", idx, n))
		}
	}

	mem := memory.NewGoAllocator()
	taken := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		s := df.columns[name]
		arr := s.Array()
		out, err := takeArray(arr, indices, mem)
		arr.Release()
		if err != nil {
			releaseAll(taken)
			return nil, &errors.DataFrameError{Op: "Take", Column: name, Message: err.Error(), Cause: err}
		}
		ts, err := series.FromArray(name, out)
		out.Release()
		if err != nil {
			releaseAll(taken)
			return nil, &errors.DataFrameError{Op: "Take", Column: name, Message: err.Error(), Cause: err}
		}
		taken = append(taken, ts)
	}
	return New(taken...), nil
}

// Filter returns a new DataFrame with the rows where keep is true.
func (df *DataFrame) Filter(keep []bool) (*DataFrame, error) {
	if len(keep) != df.Len() {
		return nil, errors.ErrMismatchedLength
	}
	indices := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			indices = append(indices, i)
		}
	}
	return df.Take(indices)
}

// Slice returns a new DataFrame with the rows from start (inclusive) to end
// (exclusive). Bounds are clamped to the frame.
func (df *DataFrame) Slice(start, end int) (*DataFrame, error) {
	length := df.Len()
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start >= end {
		return df.Take(nil)
	}

	sliced := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		arr := df.columns[name].Array()
		part := array.NewSlice(arr, int64(start), int64(end))
		arr.Release()
		s, err := series.FromArray(name, part)
		part.Release()
		if err != nil {
			releaseAll(sliced)
			return nil, &errors.DataFrameError{Op: "Slice", Column: name, Message: err.Error(), Cause: err}
		}
		sliced = append(sliced, s)
	}
	return New(sliced...), nil
}

// RowStrings renders row i for the given columns (all columns when none are given).
func (df *DataFrame) RowStrings(i int, cols ...string) []string {
	if len(cols) == 0 {
		cols = df.order
	}
	out := make([]string, len(cols))
	for j, name := range cols {
		if s, ok := df.columns[name]; ok {
			out[j] = s.GetAsString(i)
		}
	}
	return out
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}

	for _, name := range df.order {
		s := df.columns[name]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, s.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, s := range df.columns {
		s.Release()
	}
}

// share returns a new reference to the same column data.
func share(s ISeries) ISeries {
	return s.Rename(s.Name())
}

func releaseAll(list []ISeries) {
	for _, s := range list {
		s.Release()
	}
}
