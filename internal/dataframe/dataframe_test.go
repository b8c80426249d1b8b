package dataframe

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDataFrame(t *testing.T) *DataFrame {
	t.Helper()
	mem := memory.NewGoAllocator()

	ids := series.New("user_id", []string{"a1", "b2", "c3", "d4"}, mem)
	ages := series.NewNullable("user_age", []int64{25, 0, 2014, 41}, []bool{true, false, true, true}, mem)
	created := series.New("account_created_date", []arrow.Date32{
		series.DateOf(time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)),
		series.DateOf(time.Date(2014, 3, 2, 0, 0, 0, 0, time.UTC)),
		series.DateOf(time.Date(2014, 3, 3, 0, 0, 0, 0, time.UTC)),
		series.DateOf(time.Date(2014, 3, 4, 0, 0, 0, 0, time.UTC)),
	}, mem)

	// DataFrame takes ownership of the series - no need to release them manually
	return New(ids, ages, created)
}

func TestNewDataFrame(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	assert.Equal(t, 4, df.Len())
	assert.Equal(t, 3, df.Width())
	assert.Equal(t, []string{"user_id", "user_age", "account_created_date"}, df.Columns())
	assert.True(t, df.HasColumn("user_age"))
	assert.False(t, df.HasColumn("nonexistent"))

	empty := New()
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "DataFrame[empty]", empty.String())
}

func TestDataFrameSelectAndDrop(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	selected, err := df.Select("user_age", "user_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_age", "user_id"}, selected.Columns())
	selected.Release()

	// releasing a projection leaves the source intact
	assert.Equal(t, "2014", df.RowStrings(2, "user_age")[0])

	_, err = df.Select("missing")
	var dfErr *errors.DataFrameError
	require.ErrorAs(t, err, &dfErr)
	assert.Equal(t, "missing", dfErr.Column)

	dropped := df.Drop("user_age", "not_there")
	defer dropped.Release()
	assert.Equal(t, []string{"user_id", "account_created_date"}, dropped.Columns())
}

func TestDataFrameWithColumn(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()
	mem := memory.NewGoAllocator()

	t.Run("replace keeps position", func(t *testing.T) {
		out, err := df.WithColumn(series.New("user_age", []int64{1, 2, 3, 4}, mem))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, df.Columns(), out.Columns())
		assert.Equal(t, "3", out.RowStrings(2, "user_age")[0])
		assert.Equal(t, "2014", df.RowStrings(2, "user_age")[0])
	})

	t.Run("append", func(t *testing.T) {
		out, err := df.WithColumn(series.New("flag", []bool{true, false, true, false}, mem))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"user_id", "user_age", "account_created_date", "flag"}, out.Columns())
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := df.WithColumn(series.New("flag", []bool{true}, mem))
		assert.Error(t, err)
	})
}

func TestDataFrameTakePreservesNulls(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	out, err := df.Take([]int{3, 1, 1})
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"d4", "41", "2014-03-04"}, out.RowStrings(0))
	assert.Equal(t, []string{"b2", series.NullString, "2014-03-02"}, out.RowStrings(1))

	ages, err := Typed[int64](out, "test", "user_age")
	require.NoError(t, err)
	assert.Equal(t, 2, ages.NullN())

	_, err = df.Take([]int{4})
	assert.Error(t, err)
}

func TestDataFrameFilter(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	out, err := df.Filter([]bool{true, false, false, true})
	require.NoError(t, err)
	defer out.Release()

	ids, err := Typed[string](out, "test", "user_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "d4"}, ids.Values())

	_, err = df.Filter([]bool{true})
	assert.ErrorIs(t, err, errors.ErrMismatchedLength)

	none, err := df.Filter(make([]bool, 4))
	require.NoError(t, err)
	defer none.Release()
	assert.Equal(t, 0, none.Len())
	assert.Equal(t, 3, none.Width())
}

func TestDataFrameSlice(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	head, err := df.Slice(0, 2)
	require.NoError(t, err)
	defer head.Release()
	tail, err := df.Slice(2, 10)
	require.NoError(t, err)
	defer tail.Release()

	assert.Equal(t, 2, head.Len())
	assert.Equal(t, 2, tail.Len())
	for i := 0; i < 2; i++ {
		assert.Equal(t, df.RowStrings(i), head.RowStrings(i))
		assert.Equal(t, df.RowStrings(i+2), tail.RowStrings(i))
	}

	empty, err := df.Slice(3, 1)
	require.NoError(t, err)
	defer empty.Release()
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, df.Columns(), empty.Columns())
}

func TestTypedMismatch(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	_, err := Typed[float64](df, "Rule", "user_age")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected float64 column, got int64")

	_, err = Typed[string](df, "Rule", "nope")
	assert.Error(t, err)
}

func TestDataFrameString(t *testing.T) {
	df := createTestDataFrame(t)
	defer df.Release()

	expected := "DataFrame[4x3]\n  user_id: utf8\n  user_age: int64\n  account_created_date: date32"
	assert.Equal(t, expected, df.String())
}
