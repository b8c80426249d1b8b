package pipeline

import (
	"math"
	"slices"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/series"
	"golang.org/x/exp/constraints"
)

// Profile defaults.
const (
	DefaultTopN          = 10
	DefaultRareThreshold = 10
)

// ProfileOptions selects the columns to profile.
type ProfileOptions struct {
	TopN          int
	RareThreshold int
	Categorical   []string
	Numeric       []string
	Dates         []string
	Identifiers   []string
}

// ValueShare is a value with its count and share of all rows, missing included.
type ValueShare struct {
	Value   string
	Count   int
	Percent float64
}

// CategoricalProfile summarizes the value distribution of a string column.
type CategoricalProfile struct {
	Column   string
	Rows     int
	Missing  int
	Distinct int
	Top      []ValueShare
	Rare     []ValueCount
}

// NumericProfile summarizes a numeric column. Std is the sample standard
// deviation.
type NumericProfile struct {
	Column  string
	Count   int
	Missing int
	Min     float64
	Max     float64
	Mean    float64
	Median  float64
	Std     float64
}

// DateProfile is the span of a date or timestamp column.
type DateProfile struct {
	Column  string
	Count   int
	Missing int
	Min     time.Time
	Max     time.Time
}

// IdentifierProfile counts the distinct values of an identifier column.
type IdentifierProfile struct {
	Column   string
	Distinct int
	Missing  int
}

// Profile is the descriptive summary of a table.
type Profile struct {
	Rows        int
	Categorical []CategoricalProfile
	Numeric     []NumericProfile
	Dates       []DateProfile
	Identifiers []IdentifierProfile
}

// Describe computes count, min, max, mean, median and sample standard
// deviation of values. The Column and Missing fields are left empty.
func Describe[T constraints.Integer | constraints.Float](values []T) NumericProfile {
	p := NumericProfile{Count: len(values)}
	if len(values) == 0 {
		return p
	}
	sorted := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sorted[i] = float64(v)
		sum += sorted[i]
	}
	slices.Sort(sorted)

	n := len(sorted)
	p.Min, p.Max = sorted[0], sorted[n-1]
	p.Mean = sum / float64(n)
	if n%2 == 1 {
		p.Median = sorted[n/2]
	} else {
		p.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if n > 1 {
		ss := 0.0
		for _, v := range sorted {
			ss += (v - p.Mean) * (v - p.Mean)
		}
		p.Std = math.Sqrt(ss / float64(n-1))
	}
	return p
}

// ProfileTable computes the descriptive summary of df.
func ProfileTable(df *dataframe.DataFrame, opts ProfileOptions) (*Profile, error) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.RareThreshold <= 0 {
		opts.RareThreshold = DefaultRareThreshold
	}
	p := &Profile{Rows: df.Len()}

	for _, name := range opts.Categorical {
		col, err := dataframe.Typed[string](df, "Profile", name)
		if err != nil {
			return nil, err
		}
		p.Categorical = append(p.Categorical, profileCategorical(col, opts))
	}

	for _, name := range opts.Numeric {
		s, ok := df.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("Profile", name)
		}
		var np NumericProfile
		switch col := s.(type) {
		case *series.Series[int64]:
			np = Describe(present(col))
		case *series.Series[float64]:
			np = Describe(present(col))
		default:
			return nil, errors.NewTypeMismatchError("Profile", name, "numeric", s.DataType().String())
		}
		np.Column, np.Missing = name, s.NullN()
		p.Numeric = append(p.Numeric, np)
	}

	for _, name := range opts.Dates {
		s, ok := df.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("Profile", name)
		}
		var times []time.Time
		switch col := s.(type) {
		case *series.Series[arrow.Date32]:
			for _, d := range present(col) {
				times = append(times, d.ToTime())
			}
		case *series.Series[arrow.Timestamp]:
			for _, ts := range present(col) {
				times = append(times, ts.ToTime(arrow.Millisecond))
			}
		default:
			return nil, errors.NewTypeMismatchError("Profile", name, "date", s.DataType().String())
		}
		dp := DateProfile{Column: name, Count: len(times), Missing: s.NullN()}
		if len(times) > 0 {
			dp.Min = slices.MinFunc(times, time.Time.Compare)
			dp.Max = slices.MaxFunc(times, time.Time.Compare)
		}
		p.Dates = append(p.Dates, dp)
	}

	for _, name := range opts.Identifiers {
		s, ok := df.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("Profile", name)
		}
		seen := make(map[string]struct{})
		for i := 0; i < s.Len(); i++ {
			if !s.IsNull(i) {
				seen[s.GetAsString(i)] = struct{}{}
			}
		}
		p.Identifiers = append(p.Identifiers, IdentifierProfile{Column: name, Distinct: len(seen), Missing: s.NullN()})
	}
	return p, nil
}

func profileCategorical(col *series.Series[string], opts ProfileOptions) CategoricalProfile {
	counts := ValueCounts(col)
	cp := CategoricalProfile{
		Column:   col.Name(),
		Rows:     col.Len(),
		Missing:  col.NullN(),
		Distinct: len(counts),
	}
	for i, vc := range counts {
		if i < opts.TopN {
			cp.Top = append(cp.Top, ValueShare{
				Value:   vc.Value,
				Count:   vc.Count,
				Percent: percent(vc.Count, col.Len()),
			})
		}
		if vc.Count < opts.RareThreshold {
			cp.Rare = append(cp.Rare, vc)
		}
	}
	return cp
}

func present[T series.Value](s *series.Series[T]) []T {
	out := make([]T, 0, s.Len()-s.NullN())
	for i := 0; i < s.Len(); i++ {
		if !s.IsNull(i) {
			out = append(out, s.Value(i))
		}
	}
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// Cooccurrence counts rows where two columns hold the sentinel.
type Cooccurrence struct {
	ColumnA  string
	ColumnB  string
	Sentinel string
	Rows     int
	OnlyA    int
	OnlyB    int
	Both     int
}

// SentinelCooccurrence counts how often the sentinel appears in a, in b and
// in both on the same row. It must run before the sentinel is cleaned.
func SentinelCooccurrence(df *dataframe.DataFrame, a, b, sentinel string) (Cooccurrence, error) {
	c := Cooccurrence{ColumnA: a, ColumnB: b, Sentinel: sentinel, Rows: df.Len()}
	colA, err := dataframe.Typed[string](df, "SentinelCooccurrence", a)
	if err != nil {
		return c, err
	}
	colB, err := dataframe.Typed[string](df, "SentinelCooccurrence", b)
	if err != nil {
		return c, err
	}
	for i := 0; i < df.Len(); i++ {
		inA := !colA.IsNull(i) && colA.Value(i) == sentinel
		inB := !colB.IsNull(i) && colB.Value(i) == sentinel
		switch {
		case inA && inB:
			c.Both++
		case inA:
			c.OnlyA++
		case inB:
			c.OnlyB++
		}
	}
	return c, nil
}
