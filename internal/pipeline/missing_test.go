package pipeline_test

import (
	"math"
	"testing"

	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/pipeline"
	"github.com/paveg/tripclean/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingness(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := dataframe.New(
		testutil.StringColumn(mem.Allocator, "full", "a", "b", "c", "d"),
		testutil.StringColumn(mem.Allocator, "half", "a", "", "c", ""),
		testutil.StringColumn(mem.Allocator, "twin", "a", "", "c", ""),
		testutil.StringColumn(mem.Allocator, "flip", "", "b", "", "d"),
		testutil.StringColumn(mem.Allocator, "one", "a", "b", "c", ""),
	)
	defer df.Release()

	r := pipeline.Missingness(df)
	assert.Equal(t, 4, r.Rows)

	order := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		order[i] = c.Column
	}
	assert.Equal(t, []string{"half", "twin", "flip", "one", "full"}, order)
	assert.InDelta(t, 50, r.Columns[0].Percent, 1e-9)
	assert.Equal(t, 7, r.TotalMissing())
	assert.InDelta(t, 100, r.Completeness()["full"], 1e-9)

	corr := map[string]float64{}
	for _, c := range r.Correlations {
		corr[c.A+"/"+c.B] = c.Value
	}
	assert.Len(t, r.Correlations, 6)
	assert.InDelta(t, 1, corr["half/twin"], 1e-9)
	assert.InDelta(t, -1, corr["half/flip"], 1e-9)
	assert.NotContains(t, corr, "full/half")

	matrix := pipeline.MissingMatrix(df)
	require.Len(t, matrix, 4)
	assert.Equal(t, []bool{true, false, false, true, true}, matrix[1])
}

func TestNullityCorrelationUndefined(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	full := testutil.StringColumn(mem.Allocator, "a", "x", "y")
	part := testutil.StringColumn(mem.Allocator, "b", "x", "")
	assert.True(t, math.IsNaN(pipeline.NullityCorrelation(full, part)))
}
