package io

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/series"
)

// isMissing reports whether a raw cell stands for a missing value.
func isMissing(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "", "NaN", "nan", "NULL", "null":
		return true
	}
	return false
}

// ReadContext checks ctx and reads the whole input; CSV parsing is not
// interruptible.
func (r *CSVReader) ReadContext(ctx context.Context) (*dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Read()
}

// Read reads CSV data and returns a DataFrame typed by the configured schema
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	var headers []string
	var dataRows [][]string

	switch {
	case len(records) == 0:
		headers = []string{}
	case r.options.Header:
		headers = records[0]
		dataRows = records[1:]
	default:
		numCols := len(records[0])
		headers = make([]string, numCols)
		for i := 0; i < numCols; i++ {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		dataRows = records
	}

	if err := r.checkHeaders(headers); err != nil {
		return nil, err
	}

	seriesList := make([]dataframe.ISeries, 0, len(headers))
	for i, header := range headers {
		column := make([]string, len(dataRows))
		for j, row := range dataRows {
			column[j] = row[i]
		}

		decl, declared := r.options.Schema.Lookup(header)
		if !declared {
			decl = schema.Column{Name: header, Type: schema.String, Nullable: true}
		}
		s, err := buildColumn(decl, column, r.mem)
		if err != nil {
			for _, built := range seriesList {
				built.Release()
			}
			return nil, err
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

// checkHeaders verifies every declared column is present and records extras.
func (r *CSVReader) checkHeaders(headers []string) error {
	present := make(map[string]bool, len(headers))
	r.extra = nil
	for _, h := range headers {
		if present[h] {
			return &errors.SchemaError{Column: h, Expected: "unique header", Actual: "duplicate header"}
		}
		present[h] = true
		if !r.options.Schema.Has(h) && len(r.options.Schema.Columns) > 0 {
			r.extra = append(r.extra, h)
		}
	}
	for _, c := range r.options.Schema.Columns {
		if !present[c.Name] {
			return &errors.SchemaError{Column: c.Name, Expected: "present", Actual: "missing"}
		}
	}
	return nil
}

// buildColumn converts raw cells to the declared type. A cell that is not
// missing and cannot be represented in the type is a SchemaError.
func buildColumn(decl schema.Column, raw []string, mem memory.Allocator) (dataframe.ISeries, error) {
	valid := make([]bool, len(raw))
	bad := func(row int) error {
		return &errors.SchemaError{Column: decl.Name, Expected: decl.Type.String(), Actual: raw[row], Row: row + 1}
	}

	switch decl.Type {
	case schema.Int64:
		values := make([]int64, len(raw))
		for i, cell := range raw {
			if isMissing(cell) {
				continue
			}
			v, ok := parseInt(cell)
			if !ok {
				return nil, bad(i)
			}
			values[i], valid[i] = v, true
		}
		return series.NewNullable(decl.Name, values, valid, mem), nil

	case schema.Float64:
		values := make([]float64, len(raw))
		for i, cell := range raw {
			if isMissing(cell) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, bad(i)
			}
			values[i], valid[i] = v, true
		}
		return series.NewNullable(decl.Name, values, valid, mem), nil

	case schema.Bool:
		values := make([]bool, len(raw))
		for i, cell := range raw {
			if isMissing(cell) {
				continue
			}
			v, err := strconv.ParseBool(strings.TrimSpace(cell))
			if err != nil {
				return nil, bad(i)
			}
			values[i], valid[i] = v, true
		}
		return series.NewNullable(decl.Name, values, valid, mem), nil

	case schema.Date:
		values := make([]arrow.Date32, len(raw))
		for i, cell := range raw {
			if isMissing(cell) {
				continue
			}
			t, err := time.Parse(series.DateLayout, strings.TrimSpace(cell))
			if err != nil {
				return nil, bad(i)
			}
			values[i], valid[i] = series.DateOf(t), true
		}
		return series.NewNullable(decl.Name, values, valid, mem), nil

	case schema.Timestamp:
		values := make([]arrow.Timestamp, len(raw))
		for i, cell := range raw {
			if isMissing(cell) {
				continue
			}
			t, err := time.Parse(series.TimestampLayout, strings.TrimSpace(cell))
			if err != nil {
				return nil, bad(i)
			}
			values[i], valid[i] = series.TimestampOf(t), true
		}
		return series.NewNullable(decl.Name, values, valid, mem), nil

	default:
		values := make([]string, len(raw))
		for i, cell := range raw {
			if cell == "" {
				continue
			}
			values[i], valid[i] = cell, true
		}
		return series.NewNullable(decl.Name, values, valid, mem), nil
	}
}

// parseInt accepts plain integers and integral floats such as "38.0", which
// is how a column with missing values is often exported.
func parseInt(cell string) (int64, bool) {
	cell = strings.TrimSpace(cell)
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Write writes the DataFrame to CSV format. Missing cells are written empty.
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	if w.options.Header {
		if err := csvWriter.Write(df.Columns()); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	columns := df.Columns()
	row := make([]string, len(columns))
	for i := 0; i < df.Len(); i++ {
		for j, colName := range columns {
			column, _ := df.Column(colName)
			if column.IsNull(i) {
				row[j] = ""
				continue
			}
			row[j] = column.GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
