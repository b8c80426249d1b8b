package pipeline

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/validation"
)

// DefaultExampleRows is how many example rows a result keeps for the report.
const DefaultExampleRows = 5

// exampleRows renders the first DefaultExampleRows rows flagged by mask,
// limited to cols when any are given.
func exampleRows(df *dataframe.DataFrame, mask []bool, cols ...string) ([][]string, error) {
	src := df
	if len(cols) > 0 {
		selected, err := df.Select(cols...)
		if err != nil {
			return nil, err
		}
		defer selected.Release()
		src = selected
	}
	flagged, err := src.Filter(mask)
	if err != nil {
		return nil, err
	}
	defer flagged.Release()
	head, err := flagged.Slice(0, DefaultExampleRows)
	if err != nil {
		return nil, err
	}
	defer head.Release()

	rows := make([][]string, head.Len())
	for i := range rows {
		rows[i] = head.RowStrings(i)
	}
	return rows, nil
}

// DedupResult reports what deduplication found.
type DedupResult struct {
	Policy     Policy
	Keys       []string
	Duplicates int
	Removed    int
	Columns    []string
	Examples   [][]string
}

// rowKeys encodes rows as canonical strings and groups identical ones.
type rowKeys struct {
	cols    []dataframe.ISeries
	buckets map[uint64][]string
	buf     strings.Builder
}

func newRowKeys(df *dataframe.DataFrame, keys []string) (*rowKeys, error) {
	if len(keys) == 0 {
		keys = df.Columns()
	}
	if err := validation.ValidateColumns(df, "Deduplicate", keys...); err != nil {
		return nil, err
	}
	cols := make([]dataframe.ISeries, 0, len(keys))
	for _, k := range keys {
		s, _ := df.Column(k)
		cols = append(cols, s)
	}
	return &rowKeys{cols: cols, buckets: make(map[uint64][]string, df.Len())}, nil
}

// encode renders row i. A missing cell and an empty string never collide.
func (rk *rowKeys) encode(i int) string {
	rk.buf.Reset()
	for j, s := range rk.cols {
		if j > 0 {
			rk.buf.WriteByte(0x1f)
		}
		if s.IsNull(i) {
			rk.buf.WriteString("\x00N")
			continue
		}
		rk.buf.WriteByte(0x01)
		rk.buf.WriteString(s.GetAsString(i))
	}
	return rk.buf.String()
}

// seen reports whether row i repeats an earlier row, and records it otherwise.
func (rk *rowKeys) seen(i int) bool {
	key := rk.encode(i)
	h := xxhash.Sum64String(key)
	for _, k := range rk.buckets[h] {
		if k == key {
			return true
		}
	}
	rk.buckets[h] = append(rk.buckets[h], key)
	return false
}

// DuplicateMask marks every row whose key cells repeat an earlier row. With no
// keys the whole row is the key.
func DuplicateMask(df *dataframe.DataFrame, keys ...string) ([]bool, error) {
	rk, err := newRowKeys(df, keys)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, df.Len())
	for i := range mask {
		mask[i] = rk.seen(i)
	}
	return mask, nil
}

// Deduplicate finds rows repeating an earlier row on keys. Under PolicyDrop
// the repeats are removed and first occurrences keep their order; under
// PolicyReport the table is returned unchanged.
func Deduplicate(df *dataframe.DataFrame, keys []string, policy Policy) (*dataframe.DataFrame, *DedupResult, error) {
	if policy != PolicyDrop && policy != PolicyReport {
		return nil, nil, errors.NewInvalidInputError("Deduplicate", fmt.Sprintf("unknown policy %q", policy))
	}
	mask, err := DuplicateMask(df, keys...)
	if err != nil {
		return nil, nil, err
	}

	res := &DedupResult{
		Policy:  policy,
		Keys:    append([]string(nil), keys...),
		Columns: df.Columns(),
	}
	keep := make([]bool, len(mask))
	for i, dup := range mask {
		keep[i] = !dup
		if dup {
			res.Duplicates++
		}
	}
	if res.Duplicates > 0 {
		if res.Examples, err = exampleRows(df, mask); err != nil {
			return nil, nil, err
		}
	}

	if policy == PolicyReport || res.Duplicates == 0 {
		return unchanged(df), res, nil
	}
	out, err := df.Filter(keep)
	if err != nil {
		return nil, nil, err
	}
	res.Removed = res.Duplicates
	return out, res, nil
}
