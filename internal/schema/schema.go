// Package schema declares the logical column types of the user and
// clickstream datasets. Schemas are checked once, when a file is loaded.
package schema

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/tripclean/internal/series"
)

// Type is a declared logical column type.
type Type int

const (
	String Type = iota
	Int64
	Float64
	Bool
	Date
	Timestamp
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ArrowType returns the Arrow type used to store the logical type.
func (t Type) ArrowType() arrow.DataType {
	switch t {
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case Date:
		return arrow.FixedWidthTypes.Date32
	case Timestamp:
		return series.TimestampType
	default:
		return arrow.BinaryTypes.String
	}
}

// Column declares one column of a dataset.
type Column struct {
	Name        string
	Type        Type
	Nullable    bool
	Categorical bool
}

// Schema is the ordered column declaration of a dataset.
type Schema struct {
	Name    string
	Columns []Column
}

// Lookup returns the declaration of the named column.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Has reports whether the schema declares the named column.
func (s Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Names returns the declared column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Categorical returns the names of the categorical columns in order.
func (s Schema) Categorical() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Categorical {
			names = append(names, c.Name)
		}
	}
	return names
}

// With returns a copy of the schema with extra derived columns appended.
func (s Schema) With(cols ...Column) Schema {
	out := Schema{Name: s.Name, Columns: make([]Column, 0, len(s.Columns)+len(cols))}
	out.Columns = append(out.Columns, s.Columns...)
	out.Columns = append(out.Columns, cols...)
	return out
}
