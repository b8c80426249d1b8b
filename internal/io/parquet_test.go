package io_test

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMixedTypeDataFrame(t *testing.T, mem memory.Allocator) *dataframe.DataFrame {
	t.Helper()
	day := time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2014, 2, 28, 23, 59, 1, 0, time.UTC)

	return dataframe.New(
		series.NewNullable("user_id", []string{"a1", "", "c3"}, []bool{true, false, true}, mem),
		series.NewNullable("user_age", []int64{38, 0, 2014}, []bool{true, false, true}, mem),
		series.NewNullable("time_passed_in_seconds", []float64{0, 12.25, 0}, []bool{true, true, false}, mem),
		series.NewNullable("is_new_session", []bool{true, false, false}, []bool{true, true, false}, mem),
		series.NewNullable("account_created_date", []arrow.Date32{series.DateOf(day), 0, series.DateOf(day)},
			[]bool{true, false, true}, mem),
		series.NewNullable("first_active_timestamp", []arrow.Timestamp{series.TimestampOf(ts), 0, 0},
			[]bool{true, false, false}, mem),
	)
}

func TestParquetRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()

	for _, codec := range io.Compressions {
		t.Run(codec, func(t *testing.T) {
			df := createMixedTypeDataFrame(t, mem)
			defer df.Release()

			opts := io.DefaultParquetOptions()
			opts.Compression = codec
			buf := new(bytes.Buffer)
			require.NoError(t, io.NewParquetWriter(buf, opts).Write(df))

			result, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), io.DefaultParquetOptions(), mem).Read()
			require.NoError(t, err)
			defer result.Release()

			require.Equal(t, df.Columns(), result.Columns())
			for _, name := range df.Columns() {
				want, _ := df.Column(name)
				got, _ := result.Column(name)
				assert.True(t, arrow.TypeEqual(want.DataType(), got.DataType()), name)
				assert.Equal(t, want.NullN(), got.NullN(), name)
			}
			for i := 0; i < df.Len(); i++ {
				assert.Equal(t, df.RowStrings(i), result.RowStrings(i))
			}
		})
	}
}

func TestParquetWriterRejectsUnknownCodec(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := createMixedTypeDataFrame(t, mem)
	defer df.Release()

	err := io.NewParquetWriter(new(bytes.Buffer), io.ParquetOptions{Compression: "brotli9000"}).Write(df)
	assert.Error(t, err)
}

func TestParquetReaderReadsEveryRowGroup(t *testing.T) {
	mem := memory.NewGoAllocator()

	ib := array.NewInt32Builder(mem)
	ib.AppendValues([]int32{5, 0, 1800, 4000, 7}, []bool{true, true, true, true, false})
	durations := ib.NewArray()
	ib.Release()
	sb := array.NewStringBuilder(mem)
	sb.AppendValues([]string{"u1", "u1", "u2", "u2", "u3"}, nil)
	users := sb.NewArray()
	sb.Release()

	sch := arrow.NewSchema([]arrow.Field{
		{Name: "session_user_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "time_passed_in_seconds", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
	rec := array.NewRecord(sch, []arrow.Array{users, durations}, 5)
	defer rec.Release()
	tbl := array.NewTableFromRecords(sch, []arrow.Record{rec})
	defer tbl.Release()

	buf := new(bytes.Buffer)
	require.NoError(t, pqarrow.WriteTable(tbl, buf, 2, parquet.NewWriterProperties(),
		pqarrow.DefaultWriterProps()))

	opts := io.DefaultParquetOptions()
	opts.Schema = schema.Schema{Columns: []schema.Column{
		{Name: "session_user_id", Type: schema.String, Nullable: true},
		{Name: "time_passed_in_seconds", Type: schema.Float64, Nullable: true},
	}}
	df, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
	require.NoError(t, err)
	defer df.Release()

	require.Equal(t, 5, df.Len())
	secs, err := dataframe.Typed[float64](df, "test", "time_passed_in_seconds")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0, 1800, 4000, 0}, secs.Values())
	assert.True(t, secs.IsNull(4))
}

func TestParquetReaderSchemaErrors(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := createMixedTypeDataFrame(t, mem)
	defer df.Release()

	buf := new(bytes.Buffer)
	require.NoError(t, io.NewParquetWriter(buf, io.DefaultParquetOptions()).Write(df))

	t.Run("missing column", func(t *testing.T) {
		opts := io.DefaultParquetOptions()
		opts.Schema = schema.Schema{Columns: []schema.Column{{Name: "session_action", Type: schema.String}}}

		_, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
		var schemaErr *errors.SchemaError
		require.True(t, stderrors.As(err, &schemaErr))
		assert.Equal(t, "session_action", schemaErr.Column)
	})

	t.Run("string stored where a number is declared", func(t *testing.T) {
		opts := io.DefaultParquetOptions()
		opts.Schema = schema.Schema{Columns: []schema.Column{{Name: "user_id", Type: schema.Float64}}}

		_, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
		var schemaErr *errors.SchemaError
		require.True(t, stderrors.As(err, &schemaErr))
		assert.Equal(t, "user_id", schemaErr.Column)
	})

	t.Run("extra columns are reported", func(t *testing.T) {
		opts := io.DefaultParquetOptions()
		opts.Schema = schema.Schema{Columns: []schema.Column{{Name: "user_id", Type: schema.String, Nullable: true}}}

		reader := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem)
		out, err := reader.Read()
		require.NoError(t, err)
		defer out.Release()
		assert.Contains(t, reader.ExtraColumns(), "user_age")
		assert.Equal(t, 6, out.Width())
	})
}

func TestParquetReaderEmptyInput(t *testing.T) {
	reader := io.NewParquetReader(bytes.NewReader([]byte{}), io.DefaultParquetOptions(), memory.NewGoAllocator())
	_, err := reader.Read()
	require.Error(t, err)
}
