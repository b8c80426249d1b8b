// Package testutil builds user and clickstream tables for tests and holds the
// assertions shared by the package tests.
package testutil

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/series"
	"github.com/paveg/tripclean/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator for tests.
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewGoAllocator(),
		cleanup:   func() {},
	}
}

// UserRow is one raw row of user.csv.
type UserRow = synth.UserRow

// ClickRow is one raw clickstream event.
type ClickRow = synth.ClickRow

// Age returns a pointer to v, for UserRow literals.
func Age(v int64) *int64 { return &v }

// Seconds returns a pointer to v, for ClickRow literals.
func Seconds(v float64) *float64 { return &v }

// ValidUser returns a row that violates no user rule.
func ValidUser(id string) UserRow {
	return UserRow{
		ID:          id,
		FirstActive: "20140101093000",
		Created:     "2014-01-01",
		Booking:     "2014-01-05",
		Gender:      "FEMALE",
		Age:         Age(30),
		Platform:    "basic",
		Process:     "0",
		Language:    "en",
		Channel:     "direct",
		Provider:    "direct",
		Affiliate:   "untracked",
		Application: "Web",
		Device:      "Mac Desktop",
		Browser:     "Chrome",
		Destination: "US",
	}
}

// RawUsers builds a table with the columns of schema.Users() from rows.
func RawUsers(mem memory.Allocator, rows ...UserRow) *dataframe.DataFrame {
	return synth.UsersFrame(mem, rows...)
}

// RawClickstream builds a table with the columns of schema.Clickstream() from rows.
func RawClickstream(mem memory.Allocator, rows ...ClickRow) *dataframe.DataFrame {
	return synth.ClickstreamFrame(mem, rows...)
}

// StringColumn builds a single nullable string column; "" is missing.
func StringColumn(mem memory.Allocator, name string, values ...string) dataframe.ISeries {
	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = v != ""
	}
	return series.NewNullable(name, values, valid, mem)
}

// Cells returns the rendered cells of a column, "NaN" for missing ones.
func Cells(t *testing.T, df *dataframe.DataFrame, name string) []string {
	t.Helper()
	s, ok := df.Column(name)
	require.True(t, ok, "column %s should exist", name)
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.GetAsString(i)
	}
	return out
}

// AssertDataFrameEqual compares two tables cell by cell.
func AssertDataFrameEqual(t *testing.T, expected, actual *dataframe.DataFrame) {
	t.Helper()

	require.NotNil(t, expected, "expected DataFrame should not be nil")
	require.NotNil(t, actual, "actual DataFrame should not be nil")

	assert.Equal(t, expected.Len(), actual.Len(), "DataFrame lengths should match")
	require.Equal(t, expected.Columns(), actual.Columns(), "DataFrame columns should match")

	for _, colName := range expected.Columns() {
		expectedCol, _ := expected.Column(colName)
		actualCol, _ := actual.Column(colName)
		assert.Equal(t, expectedCol.DataType(), actualCol.DataType(), "column %s type should match", colName)
		assert.Equal(t, Cells(t, expected, colName), Cells(t, actual, colName), "column %s data should match", colName)
	}
}

// AssertDataFrameHasColumns verifies that a DataFrame has the expected columns.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Len(t, df.Columns(), len(expectedColumns), "column count should match")
	for _, col := range expectedColumns {
		assert.True(t, df.HasColumn(col), "DataFrame should have column %s", col)
	}
}

// AssertDataFrameNotEmpty verifies that a DataFrame is not empty.
func AssertDataFrameNotEmpty(t *testing.T, df *dataframe.DataFrame) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Positive(t, df.Len(), "DataFrame should not be empty")
	assert.Positive(t, df.Width(), "DataFrame should have columns")
}
