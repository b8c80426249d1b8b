package testutil_test

import (
	"testing"

	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawUsers(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	missing := testutil.ValidUser("u2")
	missing.Age = nil
	missing.Booking = ""

	df := testutil.RawUsers(mem.Allocator, testutil.ValidUser("u1"), missing)
	defer df.Release()

	testutil.AssertDataFrameNotEmpty(t, df)
	assert.Equal(t, schema.Users().Names(), df.Columns())
	assert.Equal(t, []string{"30", "NaN"}, testutil.Cells(t, df, schema.UserAge))
	assert.Equal(t, []string{"2014-01-05", "NaN"}, testutil.Cells(t, df, schema.FirstBookingDate))
}

func TestRawClickstream(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.RawClickstream(mem.Allocator,
		testutil.ClickRow{UserID: "u1", Action: "show", ActionType: "view", Device: "Mac Desktop", Seconds: testutil.Seconds(12)},
		testutil.ClickRow{Action: "search", ActionType: "-unknown-"},
	)
	defer df.Release()

	testutil.AssertDataFrameHasColumns(t, df, schema.Clickstream().Names())
	assert.Equal(t, []string{"u1", "NaN"}, testutil.Cells(t, df, schema.SessionUserID))
	assert.Equal(t, []string{"12", "NaN"}, testutil.Cells(t, df, schema.TimePassedInSeconds))
}

func TestAssertDataFrameEqual(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df1 := testutil.RawUsers(mem.Allocator, testutil.ValidUser("a"))
	defer df1.Release()
	df2 := testutil.RawUsers(mem.Allocator, testutil.ValidUser("a"))
	defer df2.Release()

	testutil.AssertDataFrameEqual(t, df1, df2)
}

func TestMemoryContextCleanup(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	df := testutil.RawUsers(mem.Allocator, testutil.ValidUser("a"))
	defer df.Release()

	require.NotNil(t, mem.Allocator)
	mem.Release()
	mem.Release()
}
