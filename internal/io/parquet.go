package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/series"
)

// Compressions lists the accepted Parquet compression names.
var Compressions = []string{"snappy", "gzip", "lz4", "zstd", "uncompressed"}

// ParseCompression maps a compression name to its Parquet codec.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression %q", name)
	}
}

// Read reads Parquet data and returns a DataFrame.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	return r.ReadContext(context.Background())
}

// ReadContext reads Parquet data and returns a DataFrame. Every row group
// is read; columns are coerced to the declared schema.
func (r *ParquetReader) ReadContext(ctx context.Context) (*dataframe.DataFrame, error) {
	src, ok := r.reader.(parquet.ReaderAtSeeker)
	if !ok {
		data, err := io.ReadAll(r.reader)
		if err != nil {
			return nil, fmt.Errorf("reading data: %w", err)
		}
		src = bytes.NewReader(data)
	}

	pqReader, err := file.NewParquetReader(src)
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.arrowTableToDataFrame(table)
}

// arrowTableToDataFrame converts an Arrow table to a DataFrame.
func (r *ParquetReader) arrowTableToDataFrame(table arrow.Table) (*dataframe.DataFrame, error) {
	present := make(map[string]bool)
	r.extra = nil
	seriesList := make([]dataframe.ISeries, 0, int(table.NumCols()))
	release := func() {
		for _, s := range seriesList {
			s.Release()
		}
	}

	for i := 0; i < int(table.NumCols()); i++ {
		column := table.Column(i)
		name := column.Name()
		present[name] = true

		decl, declared := r.options.Schema.Lookup(name)
		if !declared && len(r.options.Schema.Columns) > 0 {
			r.extra = append(r.extra, name)
		}

		arr, err := r.flatten(column)
		if err != nil {
			release()
			return nil, fmt.Errorf("converting column %s: %w", name, err)
		}

		var target arrow.DataType
		if declared {
			target = decl.Type.ArrowType()
		}
		coerced, err := coerce(name, arr, target, r.mem)
		arr.Release()
		if err != nil {
			release()
			return nil, err
		}

		s, err := series.FromArray(name, coerced)
		coerced.Release()
		if err != nil {
			release()
			return nil, err
		}
		seriesList = append(seriesList, s)
	}

	for _, c := range r.options.Schema.Columns {
		if !present[c.Name] {
			release()
			return nil, &errors.SchemaError{Column: c.Name, Expected: "present", Actual: "missing"}
		}
	}

	return dataframe.New(seriesList...), nil
}

// flatten joins every chunk of a column into one array.
func (r *ParquetReader) flatten(column *arrow.Column) (arrow.Array, error) {
	chunks := column.Data().Chunks()
	switch len(chunks) {
	case 0:
		b := array.NewBuilder(r.mem, column.DataType())
		defer b.Release()
		return b.NewArray(), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, r.mem)
	}
}

// coerce converts arr to target, widening numeric and string encodings.
// A nil target keeps supported types and widens the rest where possible.
func coerce(name string, arr arrow.Array, target arrow.DataType, mem memory.Allocator) (arrow.Array, error) {
	if target == nil {
		if target = naturalType(arr.DataType()); target == nil {
			return nil, &errors.SchemaError{Column: name, Expected: "supported type", Actual: arr.DataType().String()}
		}
	}
	if arrow.TypeEqual(arr.DataType(), target) {
		arr.Retain()
		return arr, nil
	}

	mismatch := &errors.SchemaError{Column: name, Expected: target.String(), Actual: arr.DataType().String()}

	switch target.ID() {
	case arrow.STRING:
		src, ok := arr.(*array.LargeString)
		if !ok {
			return nil, mismatch
		}
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(src.Value(i))
		}
		return b.NewArray(), nil

	case arrow.FLOAT64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				b.AppendNull()
				continue
			}
			switch src := arr.(type) {
			case *array.Float32:
				b.Append(float64(src.Value(i)))
			case *array.Int64:
				b.Append(float64(src.Value(i)))
			case *array.Int32:
				b.Append(float64(src.Value(i)))
			default:
				return nil, mismatch
			}
		}
		return b.NewArray(), nil

	case arrow.INT64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				b.AppendNull()
				continue
			}
			switch src := arr.(type) {
			case *array.Int32:
				b.Append(int64(src.Value(i)))
			case *array.Float64:
				v := src.Value(i)
				if math.IsNaN(v) {
					b.AppendNull()
					continue
				}
				if v != math.Trunc(v) {
					return nil, &errors.SchemaError{Column: name, Expected: "int64",
						Actual: fmt.Sprint(v), Row: i + 1}
				}
				b.Append(int64(v))
			default:
				return nil, mismatch
			}
		}
		return b.NewArray(), nil

	case arrow.TIMESTAMP:
		src, ok := arr.(*array.Timestamp)
		if !ok {
			return nil, mismatch
		}
		unit := src.DataType().(*arrow.TimestampType).Unit
		b := array.NewTimestampBuilder(mem, series.TimestampType)
		defer b.Release()
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(series.TimestampOf(src.Value(i).ToTime(unit)))
		}
		return b.NewArray(), nil

	default:
		return nil, mismatch
	}
}

// naturalType picks the supported type an undeclared column is read as.
func naturalType(dt arrow.DataType) arrow.DataType {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return schema.String.ArrowType()
	case arrow.INT64, arrow.INT32:
		return schema.Int64.ArrowType()
	case arrow.FLOAT64, arrow.FLOAT32:
		return schema.Float64.ArrowType()
	case arrow.BOOL:
		return schema.Bool.ArrowType()
	case arrow.DATE32:
		return schema.Date.ArrowType()
	case arrow.TIMESTAMP:
		return schema.Timestamp.ArrowType()
	default:
		return nil
	}
}

// Write writes the DataFrame to Parquet format. The Arrow schema is stored in
// the file so every column type reads back unchanged.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	codec, err := ParseCompression(w.options.Compression)
	if err != nil {
		return err
	}
	batch := w.options.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	record := dataFrameToRecord(df)
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithBatchSize(int64(batch)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(record.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

// dataFrameToRecord converts a DataFrame to an Arrow record.
func dataFrameToRecord(df *dataframe.DataFrame) arrow.Record {
	columns := df.Columns()
	fields := make([]arrow.Field, 0, len(columns))
	arrays := make([]arrow.Array, 0, len(columns))

	for _, colName := range columns {
		col, _ := df.Column(colName)
		arr := col.Array()
		fields = append(fields, arrow.Field{Name: colName, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}

	record := array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(df.Len()))
	for _, arr := range arrays {
		arr.Release()
	}
	return record
}
