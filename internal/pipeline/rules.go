package pipeline

import (
	"slices"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/asaskevich/govalidator"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/validation"
)

// User table rules.
const (
	RuleActivityAfterCreation      = "activity_after_creation"
	RuleCreationAfterBooking       = "creation_after_booking"
	RuleAgeOutOfRange              = "age_out_of_range"
	RuleBookingDestinationMismatch = "booking_destination_mismatch"
	RuleActivityAfterBooking       = "activity_after_booking"
	RuleDuplicateUserID            = "duplicate_user_id"
	RuleUnknownDestinationCode     = "unknown_destination_code"
)

// Clickstream rules.
const (
	RuleNegativeDuration = "negative_duration"
	RuleZeroDuration     = "zero_duration"
	RuleExtremeDuration  = "extreme_duration"
	RuleMissingUserID    = "missing_user_id"
)

// Rule defaults.
const (
	DefaultAgeMin                 = 18
	DefaultAgeMax                 = 90
	DefaultExtremeDurationSeconds = 1_000_000
)

// Rule is a named row predicate. Eval returns one flag per row, true where the
// row violates the rule. Missing inputs never violate unless the rule is about
// missingness.
type Rule struct {
	Name        string
	Description string
	Columns     []string
	Policy      Policy
	Eval        func(df *dataframe.DataFrame) ([]bool, error)
}

// RuleResult is the outcome of one rule.
type RuleResult struct {
	Rule        string
	Description string
	Policy      Policy
	Columns     []string
	Violations  int
	Mask        []bool
	Examples    [][]string
	ExampleCols []string
}

// ValidationResult is the outcome of a rule set.
type ValidationResult struct {
	Rules   []RuleResult
	Removed int
	// Cumulative holds, for each drop rule in declared order, the rows left
	// after removing the union of that rule and all earlier drop rules.
	Cumulative []ProvenanceStep
}

// Rule returns the result of the named rule.
func (v *ValidationResult) Rule(name string) (RuleResult, bool) {
	for _, r := range v.Rules {
		if r.Rule == name {
			return r, true
		}
	}
	return RuleResult{}, false
}

// Validate evaluates every rule once on df, then removes the union of the
// masks of the drop rules in a single pass. A row violating several drop
// rules is counted by each of them but removed once.
func Validate(df *dataframe.DataFrame, rules []Rule) (*dataframe.DataFrame, *ValidationResult, error) {
	n := df.Len()
	res := &ValidationResult{}
	union := make([]bool, n)
	dropped := 0

	for _, rule := range rules {
		if err := validation.ValidateColumns(df, rule.Name, rule.Columns...); err != nil {
			return nil, nil, err
		}
		mask, err := rule.Eval(df)
		if err != nil {
			return nil, nil, err
		}
		if err := validation.ValidateLength(n, len(mask), "Validate", "mask of "+rule.Name); err != nil {
			return nil, nil, err
		}

		rr := RuleResult{
			Rule:        rule.Name,
			Description: rule.Description,
			Policy:      rule.Policy,
			Columns:     rule.Columns,
			Mask:        mask,
			ExampleCols: exampleColumns(df, rule.Columns),
		}
		for i, bad := range mask {
			if !bad {
				continue
			}
			rr.Violations++
			if rule.Policy == PolicyDrop && !union[i] {
				union[i] = true
				dropped++
			}
		}
		if rr.Violations > 0 {
			if rr.Examples, err = exampleRows(df, mask, rr.ExampleCols...); err != nil {
				return nil, nil, err
			}
		}
		if rule.Policy == PolicyDrop {
			res.Cumulative = append(res.Cumulative, ProvenanceStep{Label: "after " + rule.Name, Rows: n - dropped})
		}
		res.Rules = append(res.Rules, rr)
	}

	res.Removed = dropped
	if dropped == 0 {
		return unchanged(df), res, nil
	}
	keep := make([]bool, n)
	for i, bad := range union {
		keep[i] = !bad
	}
	out, err := df.Filter(keep)
	if err != nil {
		return nil, nil, err
	}
	return out, res, nil
}

// exampleColumns puts the row identifier in front of the rule's own columns.
func exampleColumns(df *dataframe.DataFrame, cols []string) []string {
	for _, id := range []string{schema.UserID, schema.SessionUserID} {
		if df.HasColumn(id) && !slices.Contains(cols, id) {
			return append([]string{id}, cols...)
		}
	}
	return cols
}

// UserRuleOptions parameterizes the user rule set.
type UserRuleOptions struct {
	AgeMin   int64
	AgeMax   int64
	Policies map[string]Policy
}

// ClickstreamRuleOptions parameterizes the clickstream rule set.
type ClickstreamRuleOptions struct {
	ExtremeDuration float64
	Policies        map[string]Policy
}

// DefaultUserPolicies returns the default policy of every user rule.
func DefaultUserPolicies() map[string]Policy {
	return map[string]Policy{
		RuleActivityAfterCreation:      PolicyDrop,
		RuleCreationAfterBooking:       PolicyDrop,
		RuleAgeOutOfRange:              PolicyDrop,
		RuleBookingDestinationMismatch: PolicyReport,
		RuleActivityAfterBooking:       PolicyReport,
		RuleDuplicateUserID:            PolicyDrop,
		RuleUnknownDestinationCode:     PolicyReport,
	}
}

// DefaultClickstreamPolicies returns the default policy of every clickstream rule.
func DefaultClickstreamPolicies() map[string]Policy {
	return map[string]Policy{
		RuleNegativeDuration: PolicyReport,
		RuleZeroDuration:     PolicyReport,
		RuleExtremeDuration:  PolicyReport,
		RuleMissingUserID:    PolicyReport,
	}
}

// RuleNames returns the sorted rule names known for a dataset.
func RuleNames(dataset string) []string {
	var policies map[string]Policy
	switch dataset {
	case "users":
		policies = DefaultUserPolicies()
	case "clickstream":
		policies = DefaultClickstreamPolicies()
	}
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resolvePolicies(dataset string, defaults, overrides map[string]Policy) (map[string]Policy, error) {
	for name, p := range overrides {
		if _, ok := defaults[name]; !ok {
			return nil, errors.NewConfigError("rules."+dataset, "unknown rule %q", name)
		}
		if p != PolicyDrop && p != PolicyReport {
			return nil, errors.NewConfigError("rules."+dataset+"."+name, "unknown policy %q", p)
		}
		defaults[name] = p
	}
	return defaults, nil
}

// UserRules builds the user rule set in declared order.
func UserRules(opts UserRuleOptions) ([]Rule, error) {
	policies, err := resolvePolicies("users", DefaultUserPolicies(), opts.Policies)
	if err != nil {
		return nil, err
	}
	if opts.AgeMin == 0 && opts.AgeMax == 0 {
		opts.AgeMin, opts.AgeMax = DefaultAgeMin, DefaultAgeMax
	}

	return []Rule{
		{
			Name:        RuleActivityAfterCreation,
			Description: "first activity later than account creation",
			Columns:     []string{schema.FirstActiveDate, schema.AccountCreatedDate},
			Policy:      policies[RuleActivityAfterCreation],
			Eval:        dateAfter(RuleActivityAfterCreation, schema.FirstActiveDate, schema.AccountCreatedDate),
		},
		{
			Name:        RuleCreationAfterBooking,
			Description: "account created after the first booking",
			Columns:     []string{schema.AccountCreatedDate, schema.FirstBookingDate},
			Policy:      policies[RuleCreationAfterBooking],
			Eval:        dateAfter(RuleCreationAfterBooking, schema.AccountCreatedDate, schema.FirstBookingDate),
		},
		{
			Name:        RuleAgeOutOfRange,
			Description: "age outside the plausible range",
			Columns:     []string{schema.UserAge},
			Policy:      policies[RuleAgeOutOfRange],
			Eval:        ageOutOfRange(opts.AgeMin, opts.AgeMax),
		},
		{
			Name:        RuleBookingDestinationMismatch,
			Description: "booking date and destination disagree about whether a booking happened",
			Columns:     []string{schema.FirstBookingDate, schema.DestinationCountry},
			Policy:      policies[RuleBookingDestinationMismatch],
			Eval:        bookingDestinationMismatch,
		},
		{
			Name:        RuleActivityAfterBooking,
			Description: "first activity later than the first booking",
			Columns:     []string{schema.FirstActiveDate, schema.FirstBookingDate},
			Policy:      policies[RuleActivityAfterBooking],
			Eval:        dateAfter(RuleActivityAfterBooking, schema.FirstActiveDate, schema.FirstBookingDate),
		},
		{
			Name:        RuleDuplicateUserID,
			Description: "user id already seen on an earlier row",
			Columns:     []string{schema.UserID},
			Policy:      policies[RuleDuplicateUserID],
			Eval: func(df *dataframe.DataFrame) ([]bool, error) {
				return DuplicateMask(df, schema.UserID)
			},
		},
		{
			Name:        RuleUnknownDestinationCode,
			Description: "destination is not a two-letter country code",
			Columns:     []string{schema.DestinationCountry},
			Policy:      policies[RuleUnknownDestinationCode],
			Eval:        unknownDestinationCode,
		},
	}, nil
}

// ClickstreamRules builds the clickstream rule set in declared order.
func ClickstreamRules(opts ClickstreamRuleOptions) ([]Rule, error) {
	policies, err := resolvePolicies("clickstream", DefaultClickstreamPolicies(), opts.Policies)
	if err != nil {
		return nil, err
	}
	if opts.ExtremeDuration <= 0 {
		opts.ExtremeDuration = DefaultExtremeDurationSeconds
	}

	return []Rule{
		{
			Name:        RuleNegativeDuration,
			Description: "negative time between events",
			Columns:     []string{schema.TimePassedInSeconds},
			Policy:      policies[RuleNegativeDuration],
			Eval:        durationIs(RuleNegativeDuration, func(v float64) bool { return v < 0 }),
		},
		{
			Name:        RuleZeroDuration,
			Description: "zero time between events",
			Columns:     []string{schema.TimePassedInSeconds},
			Policy:      policies[RuleZeroDuration],
			Eval:        durationIs(RuleZeroDuration, func(v float64) bool { return v == 0 }),
		},
		{
			Name:        RuleExtremeDuration,
			Description: "implausibly long time between events",
			Columns:     []string{schema.TimePassedInSeconds},
			Policy:      policies[RuleExtremeDuration],
			Eval:        durationIs(RuleExtremeDuration, func(v float64) bool { return v > opts.ExtremeDuration }),
		},
		{
			Name:        RuleMissingUserID,
			Description: "event without a user id",
			Columns:     []string{schema.SessionUserID},
			Policy:      policies[RuleMissingUserID],
			Eval: func(df *dataframe.DataFrame) ([]bool, error) {
				s, ok := df.Column(schema.SessionUserID)
				if !ok {
					return nil, errors.NewColumnNotFoundError(RuleMissingUserID, schema.SessionUserID)
				}
				mask := make([]bool, s.Len())
				for i := range mask {
					mask[i] = s.IsNull(i)
				}
				return mask, nil
			},
		},
	}, nil
}

func dateAfter(op, later, earlier string) func(*dataframe.DataFrame) ([]bool, error) {
	return func(df *dataframe.DataFrame) ([]bool, error) {
		a, err := dataframe.Typed[arrow.Date32](df, op, later)
		if err != nil {
			return nil, err
		}
		b, err := dataframe.Typed[arrow.Date32](df, op, earlier)
		if err != nil {
			return nil, err
		}
		mask := make([]bool, df.Len())
		for i := range mask {
			mask[i] = !a.IsNull(i) && !b.IsNull(i) && a.Value(i) > b.Value(i)
		}
		return mask, nil
	}
}

func ageOutOfRange(lo, hi int64) func(*dataframe.DataFrame) ([]bool, error) {
	return func(df *dataframe.DataFrame) ([]bool, error) {
		age, err := dataframe.Typed[int64](df, RuleAgeOutOfRange, schema.UserAge)
		if err != nil {
			return nil, err
		}
		mask := make([]bool, df.Len())
		for i := range mask {
			if age.IsNull(i) {
				continue
			}
			v := age.Value(i)
			mask[i] = v < lo || v > hi
		}
		return mask, nil
	}
}

func bookingDestinationMismatch(df *dataframe.DataFrame) ([]bool, error) {
	booking, ok := df.Column(schema.FirstBookingDate)
	if !ok {
		return nil, errors.NewColumnNotFoundError(RuleBookingDestinationMismatch, schema.FirstBookingDate)
	}
	dest, err := dataframe.Typed[string](df, RuleBookingDestinationMismatch, schema.DestinationCountry)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, df.Len())
	for i := range mask {
		// a missing destination is not NDF
		noDestination := !dest.IsNull(i) && dest.Value(i) == schema.NoDestination
		mask[i] = booking.IsNull(i) != noDestination
	}
	return mask, nil
}

func unknownDestinationCode(df *dataframe.DataFrame) ([]bool, error) {
	dest, err := dataframe.Typed[string](df, RuleUnknownDestinationCode, schema.DestinationCountry)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, df.Len())
	for i := range mask {
		if dest.IsNull(i) {
			continue
		}
		v := dest.Value(i)
		mask[i] = v != schema.NoDestination && !strings.EqualFold(v, "other") && !govalidator.IsISO3166Alpha2(v)
	}
	return mask, nil
}

func durationIs(op string, pred func(float64) bool) func(*dataframe.DataFrame) ([]bool, error) {
	return func(df *dataframe.DataFrame) ([]bool, error) {
		d, err := dataframe.Typed[float64](df, op, schema.TimePassedInSeconds)
		if err != nil {
			return nil, err
		}
		mask := make([]bool, df.Len())
		for i := range mask {
			mask[i] = !d.IsNull(i) && pred(d.Value(i))
		}
		return mask, nil
	}
}
