package pipeline

import (
	"math"
	"sort"

	"github.com/paveg/tripclean/internal/dataframe"
)

// ColumnMissing is the missing count of one column.
type ColumnMissing struct {
	Column  string
	Missing int
	Percent float64
}

// Correlation is the nullity correlation of two columns.
type Correlation struct {
	A, B  string
	Value float64
}

// MissingReport describes the missing values of a table.
type MissingReport struct {
	Rows int
	// Columns is sorted by missing count, highest first; ties keep table order.
	Columns []ColumnMissing
	// Correlations holds every pair of partially missing columns.
	Correlations []Correlation
}

// Completeness returns the share of present cells per column, in percent.
func (r *MissingReport) Completeness() map[string]float64 {
	out := make(map[string]float64, len(r.Columns))
	for _, c := range r.Columns {
		out[c.Column] = 100 - c.Percent
	}
	return out
}

// TotalMissing returns the number of missing cells.
func (r *MissingReport) TotalMissing() int {
	total := 0
	for _, c := range r.Columns {
		total += c.Missing
	}
	return total
}

// MissingMatrix returns, row by row, whether each column is present, in
// table column order.
func MissingMatrix(df *dataframe.DataFrame) [][]bool {
	cols := df.Columns()
	matrix := make([][]bool, df.Len())
	for i := range matrix {
		matrix[i] = make([]bool, len(cols))
	}
	for j, name := range cols {
		s, _ := df.Column(name)
		for i := range matrix {
			matrix[i][j] = !s.IsNull(i)
		}
	}
	return matrix
}

// Missingness counts the missing cells of every column and correlates the
// missing indicators of columns that are neither complete nor empty.
func Missingness(df *dataframe.DataFrame) *MissingReport {
	n := df.Len()
	r := &MissingReport{Rows: n}
	var partial []string

	for _, name := range df.Columns() {
		s, _ := df.Column(name)
		missing := s.NullN()
		r.Columns = append(r.Columns, ColumnMissing{Column: name, Missing: missing, Percent: percent(missing, n)})
		if missing > 0 && missing < n {
			partial = append(partial, name)
		}
	}
	sort.SliceStable(r.Columns, func(i, j int) bool {
		return r.Columns[i].Missing > r.Columns[j].Missing
	})

	for i := 0; i < len(partial); i++ {
		for j := i + 1; j < len(partial); j++ {
			a, _ := df.Column(partial[i])
			b, _ := df.Column(partial[j])
			r.Correlations = append(r.Correlations, Correlation{
				A:     partial[i],
				B:     partial[j],
				Value: NullityCorrelation(a, b),
			})
		}
	}
	return r
}

// NullityCorrelation is the Pearson correlation of the missing indicators of
// a and b. It is NaN when either column is complete or entirely missing.
func NullityCorrelation(a, b dataframe.ISeries) float64 {
	n := a.Len()
	if n == 0 || b.Len() != n {
		return math.NaN()
	}
	var sa, sb, sab float64
	for i := 0; i < n; i++ {
		x, y := indicator(a.IsNull(i)), indicator(b.IsNull(i))
		sa += x
		sb += y
		sab += x * y
	}
	fn := float64(n)
	cov := sab/fn - (sa/fn)*(sb/fn)
	va := sa/fn - (sa/fn)*(sa/fn)
	vb := sb/fn - (sb/fn)*(sb/fn)
	if va == 0 || vb == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
