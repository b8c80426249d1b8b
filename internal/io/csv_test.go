package io_test

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ageSchema() schema.Schema {
	return schema.Schema{Name: "test", Columns: []schema.Column{
		{Name: "user_id", Type: schema.String},
		{Name: "user_age", Type: schema.Int64, Nullable: true},
		{Name: "score", Type: schema.Float64, Nullable: true},
	}}
}

func TestCSVReader(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("reads typed columns with missing values", func(t *testing.T) {
		csvData := `user_id,user_age,score,signup_flow
a1,38,1.5,0
b2,,NaN,3
c3,56.0,2,`
		opts := io.DefaultCSVOptions()
		opts.Schema = ageSchema()
		reader := io.NewCSVReader(strings.NewReader(csvData), opts, mem)

		df, err := reader.Read()
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, 3, df.Len())
		assert.Equal(t, []string{"user_id", "user_age", "score", "signup_flow"}, df.Columns())
		assert.Equal(t, []string{"signup_flow"}, reader.ExtraColumns())

		ages, err := dataframe.Typed[int64](df, "test", "user_age")
		require.NoError(t, err)
		assert.Equal(t, []int64{38, 0, 56}, ages.Values())
		assert.True(t, ages.IsNull(1))

		scores, err := dataframe.Typed[float64](df, "test", "score")
		require.NoError(t, err)
		assert.True(t, scores.IsNull(1))

		extra, err := dataframe.Typed[string](df, "test", "signup_flow")
		require.NoError(t, err)
		assert.True(t, extra.IsNull(2))
	})

	t.Run("non numeric age is a schema error", func(t *testing.T) {
		csvData := "user_id,user_age,score\na1,38,1\nb2,abc,2\n"
		opts := io.DefaultCSVOptions()
		opts.Schema = ageSchema()

		_, err := io.NewCSVReader(strings.NewReader(csvData), opts, mem).Read()
		var schemaErr *errors.SchemaError
		require.True(t, stderrors.As(err, &schemaErr))
		assert.Equal(t, "user_age", schemaErr.Column)
		assert.Equal(t, 2, schemaErr.Row)
		assert.Equal(t, "abc", schemaErr.Actual)
	})

	t.Run("fractional age is a schema error", func(t *testing.T) {
		csvData := "user_id,user_age,score\na1,38.5,1\n"
		opts := io.DefaultCSVOptions()
		opts.Schema = ageSchema()

		_, err := io.NewCSVReader(strings.NewReader(csvData), opts, mem).Read()
		var schemaErr *errors.SchemaError
		assert.True(t, stderrors.As(err, &schemaErr))
	})

	t.Run("missing declared column", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.Schema = ageSchema()

		_, err := io.NewCSVReader(strings.NewReader("user_id,score\na1,1\n"), opts, mem).Read()
		var schemaErr *errors.SchemaError
		require.True(t, stderrors.As(err, &schemaErr))
		assert.Equal(t, "user_age", schemaErr.Column)
	})

	t.Run("reads CSV without headers", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.Header = false

		df, err := io.NewCSVReader(strings.NewReader("x,1\ny,2\n"), opts, mem).Read()
		require.NoError(t, err)
		defer df.Release()

		assert.Equal(t, []string{"column_0", "column_1"}, df.Columns())
		assert.Equal(t, 2, df.Len())
	})

	t.Run("ragged rows fail", func(t *testing.T) {
		_, err := io.NewCSVReader(strings.NewReader("a,b\n1,2\n3\n"), io.DefaultCSVOptions(), mem).Read()
		assert.Error(t, err)
	})

	t.Run("header only", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.Schema = ageSchema()

		df, err := io.NewCSVReader(strings.NewReader("user_id,user_age,score\n"), opts, mem).Read()
		require.NoError(t, err)
		defer df.Release()
		assert.Equal(t, 0, df.Len())
		assert.Equal(t, 3, df.Width())
	})
}

func TestCSVWriterRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	opts := io.DefaultCSVOptions()
	opts.Schema = ageSchema()

	input := "user_id,user_age,score\na1,38,1.5\nb2,,2\n"
	df, err := io.NewCSVReader(strings.NewReader(input), opts, mem).Read()
	require.NoError(t, err)
	defer df.Release()

	var buf bytes.Buffer
	require.NoError(t, io.NewCSVWriter(&buf, io.DefaultCSVOptions()).Write(df))
	assert.Equal(t, input, buf.String())
}
