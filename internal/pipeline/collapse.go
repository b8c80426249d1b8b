package pipeline

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/series"
	"github.com/paveg/tripclean/internal/validation"
)

// CollapseSpec folds the rare values of one column into a catch-all label.
type CollapseSpec struct {
	Column    string `json:"column" yaml:"column"`
	Threshold int    `json:"threshold" yaml:"threshold"`
	Label     string `json:"label" yaml:"label"`
}

// ValueCount is a value with its number of occurrences.
type ValueCount struct {
	Value string
	Count int
}

// CollapseResult keeps the full value mapping of a collapsed column.
type CollapseResult struct {
	Spec         CollapseSpec
	Kept         []ValueCount
	Collapsed    []ValueCount
	RowsRemapped int
}

// Mapping returns each collapsed value -> the catch-all label. Kept values
// map to themselves and are left out.
func (r CollapseResult) Mapping() map[string]string {
	m := make(map[string]string, len(r.Collapsed))
	for _, vc := range r.Collapsed {
		m[vc.Value] = r.Spec.Label
	}
	return m
}

// ValueCounts counts the non-missing values of a string column, most
// frequent first; ties are ordered by value.
func ValueCounts(s *series.Series[string]) []ValueCount {
	counts := make(map[string]int)
	for i := 0; i < s.Len(); i++ {
		if !s.IsNull(i) {
			counts[s.Value(i)]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Collapse replaces every value seen fewer than Threshold times with Label.
// Missing values stay missing.
func Collapse(df *dataframe.DataFrame, specs []CollapseSpec) (*dataframe.DataFrame, []CollapseResult, error) {
	mem := memory.NewGoAllocator()
	out := unchanged(df)
	results := make([]CollapseResult, 0, len(specs))

	for _, spec := range specs {
		check := validation.NewCompoundValidator(
			validation.NewMinValidator(spec.Threshold, 1, "Collapse", spec.Column, "threshold"),
			validation.NewColumnValidator(out, "Collapse", spec.Column),
		)
		if err := check.Validate(); err != nil {
			out.Release()
			return nil, nil, err
		}
		col, err := dataframe.Typed[string](out, "Collapse", spec.Column)
		if err != nil {
			out.Release()
			return nil, nil, err
		}

		res := CollapseResult{Spec: spec}
		for _, vc := range ValueCounts(col) {
			if vc.Count >= spec.Threshold {
				res.Kept = append(res.Kept, vc)
				continue
			}
			res.Collapsed = append(res.Collapsed, vc)
		}

		if mapping := res.Mapping(); len(mapping) > 0 {
			values := col.Values()
			valid := col.Validity()
			for i, v := range values {
				if label, rare := mapping[v]; valid[i] && rare && v != label {
					values[i] = label
					res.RowsRemapped++
				}
			}
			next, err := out.WithColumn(series.NewNullable(spec.Column, values, valid, mem))
			out.Release()
			if err != nil {
				return nil, nil, err
			}
			out = next
		}
		results = append(results, res)
	}
	return out, results, nil
}
