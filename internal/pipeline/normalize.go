package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/paveg/tripclean/internal/series"
	"github.com/paveg/tripclean/internal/validation"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Raw layouts of the source files.
const (
	RawTimestampLayout = "20060102150405"
	RawDateLayout      = "2006-01-02"
)

// DefaultSentinel is the placeholder the source systems write for unknown values.
const DefaultSentinel = "-unknown-"

// DefaultSessionBreakSeconds is the idle gap after which a new session starts.
const DefaultSessionBreakSeconds = 1800

// ParseDate parses raw with layout. It never fails loudly: an empty or
// unparsable value reports ok == false. Timestamps written as floats
// ("20140101000000.0") are accepted.
func ParseDate(raw, layout string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if dot := strings.IndexByte(raw, '.'); dot > 0 && !strings.Contains(layout, ".") {
		if strings.Trim(raw[dot+1:], "0") != "" {
			return time.Time{}, false
		}
		raw = raw[:dot]
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateColumn describes one text column to parse.
type DateColumn struct {
	Column    string
	Layout    string
	Timestamp bool
	// DeriveDate, when set, names a date column derived from the parsed
	// timestamp (truncated to the day).
	DeriveDate string
}

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	Dates           []DateColumn
	TrimColumns     []string
	Lowercase       []string
	Sentinel        string
	SentinelColumns []string
	Domains         map[string][]string
	// SessionBreak in seconds; zero disables the is_new_session flag.
	SessionBreak float64
}

// GenderDomain is the allowed set of user_gender values after lower-casing.
var GenderDomain = []string{"female", "male", "other"}

// UserNormalizeOptions returns the default normalization of the user table.
func UserNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		Dates: []DateColumn{
			{Column: schema.FirstActiveTimestamp, Layout: RawTimestampLayout, Timestamp: true, DeriveDate: schema.FirstActiveDate},
			{Column: schema.AccountCreatedDate, Layout: RawDateLayout},
			{Column: schema.FirstBookingDate, Layout: RawDateLayout},
		},
		TrimColumns:     schema.Users().Categorical(),
		Lowercase:       []string{schema.UserGender},
		Sentinel:        DefaultSentinel,
		SentinelColumns: []string{schema.UserGender},
		Domains:         map[string][]string{schema.UserGender: GenderDomain},
	}
}

// ClickstreamNormalizeOptions returns the default normalization of the
// clickstream table. session_action keeps its sentinel.
func ClickstreamNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		TrimColumns:     schema.Clickstream().Categorical(),
		Sentinel:        DefaultSentinel,
		SentinelColumns: []string{schema.SessionActionType, schema.SessionActionDetail, schema.SessionDeviceType},
		SessionBreak:    DefaultSessionBreakSeconds,
	}
}

// DateRange is the span of the parsed values of a column.
type DateRange struct {
	Min time.Time
	Max time.Time
}

// ColumnChange counts what normalization did to one column.
type ColumnChange struct {
	Column      string
	Parsed      int
	Unparsable  int
	Trimmed     int
	Lowercased  int
	Sentinel    int
	OutOfDomain int
	Range       *DateRange
}

// Changed reports whether any value of the column was rewritten.
func (c ColumnChange) Changed() bool {
	return c.Parsed+c.Unparsable+c.Trimmed+c.Lowercased+c.Sentinel+c.OutOfDomain > 0
}

// NormalizationResult reports what Normalize changed.
type NormalizationResult struct {
	Columns      []ColumnChange
	SessionBreak float64
	NewSessions  int
	SessionNulls int
}

// Column returns the change record of the named column.
func (r *NormalizationResult) Column(name string) (ColumnChange, bool) {
	for _, c := range r.Columns {
		if c.Column == name {
			return c, true
		}
	}
	return ColumnChange{}, false
}

// Normalize parses date columns, canonicalizes categorical columns and
// derives the session break flag. Rows are never removed. Columns already in
// their target type are left as they are, so normalizing twice is a no-op.
func Normalize(df *dataframe.DataFrame, opts NormalizeOptions) (*dataframe.DataFrame, *NormalizationResult, error) {
	mem := memory.NewGoAllocator()
	res := &NormalizationResult{SessionBreak: opts.SessionBreak}
	out := unchanged(df)

	for _, dc := range opts.Dates {
		next, change, err := normalizeDate(out, dc, mem)
		if err != nil {
			return nil, nil, err
		}
		out = next
		res.Columns = append(res.Columns, change)
	}

	lower := cases.Lower(language.Und)
	for _, name := range opts.TrimColumns {
		col, err := dataframe.Typed[string](out, "Normalize", name)
		if err != nil {
			return nil, nil, err
		}
		change := ColumnChange{Column: name}
		values := col.Values()
		valid := col.Validity()
		lowercase := slices.Contains(opts.Lowercase, name)
		sentinel := opts.Sentinel != "" && slices.Contains(opts.SentinelColumns, name)
		domain, hasDomain := opts.Domains[name]

		for i, v := range values {
			if !valid[i] {
				continue
			}
			if t := strings.TrimSpace(v); t != v {
				v = t
				change.Trimmed++
			}
			if lowercase {
				if l := lower.String(v); l != v {
					v = l
					change.Lowercased++
				}
			}
			switch {
			case v == "":
				valid[i] = false
			case sentinel && v == opts.Sentinel:
				valid[i] = false
				change.Sentinel++
			case hasDomain && !slices.Contains(domain, v):
				valid[i] = false
				change.OutOfDomain++
			}
			values[i] = v
		}

		res.Columns = append(res.Columns, change)
		if !change.Changed() && col.NullN() == countFalse(valid) {
			continue
		}
		next, err := out.WithColumn(series.NewNullable(name, values, valid, mem))
		if err != nil {
			return nil, nil, err
		}
		out = next
	}

	if opts.SessionBreak > 0 {
		next, err := flagSessions(out, opts.SessionBreak, res, mem)
		if err != nil {
			return nil, nil, err
		}
		out = next
	}
	return out, res, nil
}

func normalizeDate(df *dataframe.DataFrame, dc DateColumn, mem memory.Allocator) (*dataframe.DataFrame, ColumnChange, error) {
	change := ColumnChange{Column: dc.Column}
	s, ok := df.Column(dc.Column)
	if !ok {
		return nil, change, errors.NewColumnNotFoundError("Normalize", dc.Column)
	}

	raw, isText := s.(*series.Series[string])
	if !isText {
		// already parsed on an earlier pass
		if err := checkParsed(df, dc); err != nil {
			return nil, change, err
		}
		if dc.DeriveDate == "" || !dc.Timestamp || df.HasColumn(dc.DeriveDate) {
			return df.Drop(), change, nil
		}
		ts := s.(*series.Series[arrow.Timestamp])
		times := make([]time.Time, ts.Len())
		for i := range times {
			times[i] = ts.Value(i).ToTime(arrow.Millisecond)
		}
		out, err := df.WithColumn(dateSeries(dc.DeriveDate, times, ts.Validity(), mem))
		return out, change, err
	}

	n := raw.Len()
	times := make([]time.Time, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if raw.IsNull(i) {
			continue
		}
		t, ok := ParseDate(raw.Value(i), dc.Layout)
		if !ok {
			change.Unparsable++
			continue
		}
		times[i], valid[i] = t, true
		change.Parsed++
		if change.Range == nil {
			change.Range = &DateRange{Min: t, Max: t}
		} else if t.Before(change.Range.Min) {
			change.Range.Min = t
		} else if t.After(change.Range.Max) {
			change.Range.Max = t
		}
	}

	var parsed dataframe.ISeries
	if dc.Timestamp {
		values := make([]arrow.Timestamp, n)
		for i, t := range times {
			values[i] = series.TimestampOf(t)
		}
		parsed = series.NewNullable(dc.Column, values, valid, mem)
	} else {
		parsed = dateSeries(dc.Column, times, valid, mem)
	}

	out, err := df.WithColumn(parsed)
	if err != nil {
		return nil, change, err
	}
	if dc.DeriveDate != "" {
		out, err = out.WithColumn(dateSeries(dc.DeriveDate, times, valid, mem))
		if err != nil {
			return nil, change, err
		}
	}
	return out, change, nil
}

func checkParsed(df *dataframe.DataFrame, dc DateColumn) error {
	want := schema.Date.ArrowType()
	if dc.Timestamp {
		want = schema.Timestamp.ArrowType()
	}
	return validation.ValidateColumnType(df, "Normalize", dc.Column, want)
}

func dateSeries(name string, times []time.Time, valid []bool, mem memory.Allocator) *series.Series[arrow.Date32] {
	values := make([]arrow.Date32, len(times))
	for i, t := range times {
		if valid[i] {
			values[i] = series.DateOf(t)
		}
	}
	return series.NewNullable(name, values, valid, mem)
}

func flagSessions(df *dataframe.DataFrame, breakSeconds float64, res *NormalizationResult, mem memory.Allocator) (*dataframe.DataFrame, error) {
	durations, err := dataframe.Typed[float64](df, "Normalize", schema.TimePassedInSeconds)
	if err != nil {
		return nil, fmt.Errorf("session break flag: %w", err)
	}
	n := durations.Len()
	flags := make([]bool, n)
	valid := durations.Validity()
	for i := 0; i < n; i++ {
		if !valid[i] {
			res.SessionNulls++
			continue
		}
		flags[i] = durations.Value(i) > breakSeconds
		if flags[i] {
			res.NewSessions++
		}
	}
	return df.WithColumn(series.NewNullable(schema.IsNewSession, flags, valid, mem))
}

func countFalse(mask []bool) int {
	n := 0
	for _, b := range mask {
		if !b {
			n++
		}
	}
	return n
}
