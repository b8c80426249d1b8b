package pipeline_test

import (
	stderrors "errors"
	"testing"

	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/pipeline"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ruleFixture returns normalized users:
// u1 valid, u7 aged 2014, u9 headed to FR without a booking, u5 active after
// creation and aged 10, u6 created after booking, a second u1, u8 headed to ZZ.
func ruleFixture(t *testing.T) *dataframe.DataFrame {
	t.Helper()

	u7 := testutil.ValidUser("u7")
	u7.Age = testutil.Age(2014)
	u9 := testutil.ValidUser("u9")
	u9.Destination = "FR"
	u9.Booking = ""
	u5 := testutil.ValidUser("u5")
	u5.FirstActive = "20140110120000"
	u5.Age = testutil.Age(10)
	u6 := testutil.ValidUser("u6")
	u6.Created = "2014-02-01"
	again := testutil.ValidUser("u1")
	again.Age = testutil.Age(40)
	u8 := testutil.ValidUser("u8")
	u8.Destination = "ZZ"

	return normalizedUsers(t, testutil.ValidUser("u1"), u7, u9, u5, u6, again, u8)
}

func TestValidateUsers(t *testing.T) {
	df := ruleFixture(t)
	defer df.Release()

	rules, err := pipeline.UserRules(pipeline.UserRuleOptions{})
	require.NoError(t, err)

	out, res, err := pipeline.Validate(df, rules)
	require.NoError(t, err)
	defer out.Release()

	counts := map[string]int{}
	for _, r := range res.Rules {
		counts[r.Rule] = r.Violations
	}
	assert.Equal(t, map[string]int{
		pipeline.RuleActivityAfterCreation:      1,
		pipeline.RuleCreationAfterBooking:       1,
		pipeline.RuleAgeOutOfRange:              2,
		pipeline.RuleBookingDestinationMismatch: 1,
		pipeline.RuleActivityAfterBooking:       1,
		pipeline.RuleDuplicateUserID:            1,
		pipeline.RuleUnknownDestinationCode:     1,
	}, counts)

	// u5 violates two drop rules and is removed once
	assert.Equal(t, 4, res.Removed)
	assert.Equal(t, []string{"u1", "u9", "u8"}, testutil.Cells(t, out, schema.UserID))
	assert.Equal(t, []pipeline.ProvenanceStep{
		{Label: "after activity_after_creation", Rows: 6},
		{Label: "after creation_after_booking", Rows: 5},
		{Label: "after age_out_of_range", Rows: 4},
		{Label: "after duplicate_user_id", Rows: 3},
	}, res.Cumulative)

	age, ok := res.Rule(pipeline.RuleAgeOutOfRange)
	require.True(t, ok)
	assert.Equal(t, []string{schema.UserID, schema.UserAge}, age.ExampleCols)
	assert.Equal(t, [][]string{{"u7", "2014"}, {"u5", "10"}}, age.Examples)
}

func TestValidateUserInvariants(t *testing.T) {
	df := ruleFixture(t)
	defer df.Release()

	rules, err := pipeline.UserRules(pipeline.UserRuleOptions{})
	require.NoError(t, err)
	out, _, err := pipeline.Validate(df, rules)
	require.NoError(t, err)
	defer out.Release()

	dups, err := pipeline.DuplicateMask(out, schema.UserID)
	require.NoError(t, err)
	assert.NotContains(t, dups, true)

	again, res, err := pipeline.Validate(out, rules)
	require.NoError(t, err)
	defer again.Release()
	for _, r := range res.Rules {
		if r.Policy == pipeline.PolicyDrop {
			assert.Zero(t, r.Violations, r.Rule)
		}
	}
}

func TestBookingMismatchPolicy(t *testing.T) {
	df := ruleFixture(t)
	defer df.Release()

	t.Run("report keeps the row", func(t *testing.T) {
		rules, err := pipeline.UserRules(pipeline.UserRuleOptions{})
		require.NoError(t, err)
		out, _, err := pipeline.Validate(df, rules)
		require.NoError(t, err)
		defer out.Release()
		assert.Contains(t, testutil.Cells(t, out, schema.UserID), "u9")
	})

	t.Run("drop removes the row", func(t *testing.T) {
		rules, err := pipeline.UserRules(pipeline.UserRuleOptions{
			Policies: map[string]pipeline.Policy{pipeline.RuleBookingDestinationMismatch: pipeline.PolicyDrop},
		})
		require.NoError(t, err)
		out, res, err := pipeline.Validate(df, rules)
		require.NoError(t, err)
		defer out.Release()
		assert.NotContains(t, testutil.Cells(t, out, schema.UserID), "u9")
		assert.Equal(t, 5, res.Removed)
	})
}

func TestBookingDestinationMismatch(t *testing.T) {
	tests := []struct {
		name        string
		booking     string
		destination string
		want        int
	}{
		{name: "no booking and no destination", booking: "", destination: "", want: 1},
		{name: "booking and no destination", booking: "2014-01-05", destination: "", want: 0},
		{name: "no booking and NDF", booking: "", destination: schema.NoDestination, want: 0},
		{name: "booking and NDF", booking: "2014-01-05", destination: schema.NoDestination, want: 1},
		{name: "booking and country", booking: "2014-01-05", destination: "US", want: 0},
	}

	rules, err := pipeline.UserRules(pipeline.UserRuleOptions{})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testutil.ValidUser("u1")
			u.Booking = tt.booking
			u.Destination = tt.destination
			df := normalizedUsers(t, u)
			defer df.Release()

			out, res, err := pipeline.Validate(df, rules)
			require.NoError(t, err)
			defer out.Release()

			mismatch, ok := res.Rule(pipeline.RuleBookingDestinationMismatch)
			require.True(t, ok)
			assert.Equal(t, tt.want, mismatch.Violations)
		})
	}
}

func TestAgeRangeIsConfigurable(t *testing.T) {
	df := ruleFixture(t)
	defer df.Release()

	rules, err := pipeline.UserRules(pipeline.UserRuleOptions{AgeMin: 5, AgeMax: 3000})
	require.NoError(t, err)
	_, res, err := pipeline.Validate(df, rules)
	require.NoError(t, err)

	age, _ := res.Rule(pipeline.RuleAgeOutOfRange)
	assert.Zero(t, age.Violations)
}

func TestRulePoliciesRejectUnknownNames(t *testing.T) {
	_, err := pipeline.UserRules(pipeline.UserRuleOptions{
		Policies: map[string]pipeline.Policy{"too_tall": pipeline.PolicyDrop},
	})
	var ce *errors.ConfigError
	require.True(t, stderrors.As(err, &ce))

	_, err = pipeline.ClickstreamRules(pipeline.ClickstreamRuleOptions{
		Policies: map[string]pipeline.Policy{pipeline.RuleZeroDuration: "ignore"},
	})
	require.True(t, stderrors.As(err, &ce))

	assert.Equal(t, []string{
		pipeline.RuleExtremeDuration,
		pipeline.RuleMissingUserID,
		pipeline.RuleNegativeDuration,
		pipeline.RuleZeroDuration,
	}, pipeline.RuleNames("clickstream"))
}

func TestValidateClickstream(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.RawClickstream(mem.Allocator,
		testutil.ClickRow{UserID: "u1", Action: "show", Seconds: testutil.Seconds(-1)},
		testutil.ClickRow{UserID: "u1", Action: "show", Seconds: testutil.Seconds(0)},
		testutil.ClickRow{UserID: "u1", Action: "show", Seconds: testutil.Seconds(2_000_000)},
		testutil.ClickRow{Action: "show", Seconds: testutil.Seconds(5)},
		testutil.ClickRow{UserID: "u2", Action: "show"},
	)
	defer df.Release()

	rules, err := pipeline.ClickstreamRules(pipeline.ClickstreamRuleOptions{})
	require.NoError(t, err)
	out, res, err := pipeline.Validate(df, rules)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 5, out.Len())
	assert.Zero(t, res.Removed)
	assert.Empty(t, res.Cumulative)
	for _, name := range pipeline.RuleNames("clickstream") {
		r, ok := res.Rule(name)
		require.True(t, ok)
		assert.Equal(t, 1, r.Violations, name)
	}
}
