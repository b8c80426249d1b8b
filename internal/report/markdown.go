// Package report renders the outcome of a pipeline run: a Markdown report for
// people, a YAML summary for machines and a metrics snapshot for Prometheus.
package report

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/pipeline"
	"github.com/paveg/tripclean/internal/series"
	"github.com/paveg/tripclean/internal/version"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxCorrelations bounds the nullity correlation pairs listed in a report.
const MaxCorrelations = 10

type writer struct {
	buf bytes.Buffer
	p   *message.Printer
}

func newWriter() *writer {
	return &writer{p: message.NewPrinter(language.English)}
}

func (w *writer) line(format string, args ...any) {
	w.p.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *writer) heading(level int, title string) {
	w.buf.WriteByte('\n')
	w.line("%s %s", strings.Repeat("#", level), title)
	w.buf.WriteByte('\n')
}

func (w *writer) table(header []string, rows [][]string) {
	w.line("| %s |", strings.Join(header, " | "))
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	w.line("| %s |", strings.Join(sep, " | "))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		w.line("| %s |", strings.Join(cells, " | "))
	}
}

func (w *writer) num(n int) string {
	return w.p.Sprintf("%d", n)
}

func (w *writer) pct(f float64) string {
	return w.p.Sprintf("%.2f%%", f)
}

// Markdown renders run as a Markdown document. Stage sections follow the
// order in which the stages ran.
func Markdown(run *pipeline.RunReport) []byte {
	w := newWriter()

	w.line("# Cleaning report: %s", run.Dataset)
	w.buf.WriteByte('\n')
	w.line("- Run: `%s` (tripclean %s)", run.RunID, version.Info().Short())
	w.line("- Input: `%s`", run.Input)
	w.line("- Started: %s", run.StartedAt.UTC().Format(time.RFC3339))
	w.line("- Duration: %s", run.Duration.Round(time.Millisecond))
	w.line("- Rows: %s initial, %s final (%s removed)",
		w.num(run.InitialRows), w.num(run.FinalRows), w.num(run.InitialRows-run.FinalRows))

	w.heading(2, "Row provenance")
	var prov [][]string
	for _, step := range run.Provenance() {
		prov = append(prov, []string{step.Label, w.num(step.Rows)})
	}
	w.table([]string{"step", "rows"}, prov)

	w.heading(2, "Stages")
	var stages [][]string
	for _, st := range run.Stages {
		stages = append(stages, []string{
			st.Stage, w.num(st.RowsIn), w.num(st.RowsOut), w.num(st.Removed()), st.Duration.Round(time.Microsecond).String(),
		})
	}
	w.table([]string{"stage", "rows in", "rows out", "removed", "duration"}, stages)

	for _, st := range run.Stages {
		switch d := st.Detail.(type) {
		case *pipeline.DedupResult:
			w.dedup(st.Stage, d)
		case *pipeline.NormalizationResult:
			w.normalization(d)
		case *pipeline.ValidationResult:
			w.validation(d)
		case []pipeline.CollapseResult:
			w.collapse(d)
		case *pipeline.Profile:
			w.profile(d)
		case *pipeline.MissingReport:
			w.missing(st.Stage, d)
		case *pipeline.Cooccurrence:
			w.cooccurrence(d)
		case *pipeline.ExportResult:
			w.heading(2, "Export")
			w.line("Wrote %s rows to `%s` (%s).", w.num(d.Rows), d.Path, d.Compression)
		}
	}
	return w.buf.Bytes()
}

func (w *writer) dedup(stage string, d *pipeline.DedupResult) {
	title := "Duplicates"
	if len(d.Keys) > 0 {
		title = fmt.Sprintf("Duplicates on %s", strings.Join(d.Keys, ", "))
	}
	w.heading(2, title)
	w.line("Stage `%s`, policy `%s`: %s duplicate rows, %s removed.", stage, d.Policy, w.num(d.Duplicates), w.num(d.Removed))
	if len(d.Examples) > 0 {
		w.buf.WriteByte('\n')
		w.table(d.Columns, d.Examples)
	}
}

func (w *writer) normalization(d *pipeline.NormalizationResult) {
	w.heading(2, "Normalization")
	var rows [][]string
	for _, c := range d.Columns {
		if !c.Changed() {
			continue
		}
		span := ""
		if c.Range != nil {
			span = c.Range.Min.Format(series.DateLayout) + " .. " + c.Range.Max.Format(series.DateLayout)
		}
		rows = append(rows, []string{
			c.Column, w.num(c.Parsed), w.num(c.Unparsable), w.num(c.Trimmed),
			w.num(c.Lowercased), w.num(c.Sentinel), w.num(c.OutOfDomain), span,
		})
	}
	if len(rows) == 0 {
		w.line("No value changed.")
	} else {
		w.table([]string{"column", "parsed", "unparsable", "trimmed", "lower-cased", "sentinel", "out of domain", "range"}, rows)
	}
	if d.SessionBreak > 0 {
		w.buf.WriteByte('\n')
		w.line("Session break at %.0f s: %s new sessions, %s events without a duration.",
			d.SessionBreak, w.num(d.NewSessions), w.num(d.SessionNulls))
	}
}

func (w *writer) validation(d *pipeline.ValidationResult) {
	w.heading(2, "Validation rules")
	var rows [][]string
	for _, r := range d.Rules {
		rows = append(rows, []string{r.Rule, string(r.Policy), w.num(r.Violations), r.Description})
	}
	w.table([]string{"rule", "policy", "violations", "description"}, rows)
	w.buf.WriteByte('\n')
	w.line("Rows removed by drop rules (union): %s.", w.num(d.Removed))

	for _, r := range d.Rules {
		if len(r.Examples) == 0 {
			continue
		}
		w.heading(3, "Examples: "+r.Rule)
		w.table(r.ExampleCols, r.Examples)
	}
}

func (w *writer) collapse(results []pipeline.CollapseResult) {
	w.heading(2, "Rare-category collapse")
	for _, r := range results {
		w.heading(3, r.Spec.Column)
		w.line("Threshold %s, label `%s`: %s values kept, %s folded, %s rows remapped.",
			w.num(r.Spec.Threshold), r.Spec.Label, w.num(len(r.Kept)), w.num(len(r.Collapsed)), w.num(r.RowsRemapped))
		if len(r.Collapsed) == 0 {
			continue
		}
		w.buf.WriteByte('\n')
		rows := make([][]string, 0, len(r.Collapsed))
		for _, vc := range r.Collapsed {
			rows = append(rows, []string{vc.Value, w.num(vc.Count), r.Spec.Label})
		}
		w.table([]string{"value", "count", "mapped to"}, rows)
	}
}

func (w *writer) profile(p *pipeline.Profile) {
	w.heading(2, "Profile")
	for _, c := range p.Categorical {
		w.heading(3, c.Column)
		w.line("%s distinct values, %s missing.", w.num(c.Distinct), w.num(c.Missing))
		w.buf.WriteByte('\n')
		rows := make([][]string, 0, len(c.Top))
		for _, v := range c.Top {
			rows = append(rows, []string{v.Value, w.num(v.Count), w.pct(v.Percent)})
		}
		w.table([]string{"value", "count", "share"}, rows)
		if len(c.Rare) > 0 {
			names := make([]string, len(c.Rare))
			for i, v := range c.Rare {
				names[i] = fmt.Sprintf("%s (%d)", v.Value, v.Count)
			}
			w.buf.WriteByte('\n')
			w.line("Rare: %s", strings.Join(names, ", "))
		}
	}

	if len(p.Numeric) > 0 {
		w.heading(3, "Numeric columns")
		rows := make([][]string, 0, len(p.Numeric))
		for _, n := range p.Numeric {
			rows = append(rows, []string{
				n.Column, w.num(n.Count), w.num(n.Missing),
				w.p.Sprintf("%.2f", n.Min), w.p.Sprintf("%.2f", n.Max), w.p.Sprintf("%.2f", n.Mean),
				w.p.Sprintf("%.2f", n.Median), w.p.Sprintf("%.2f", n.Std),
			})
		}
		w.table([]string{"column", "count", "missing", "min", "max", "mean", "median", "std"}, rows)
	}

	if len(p.Dates) > 0 {
		w.heading(3, "Date columns")
		rows := make([][]string, 0, len(p.Dates))
		for _, d := range p.Dates {
			lo, hi := "", ""
			if d.Count > 0 {
				lo, hi = d.Min.Format(series.DateLayout), d.Max.Format(series.DateLayout)
			}
			rows = append(rows, []string{d.Column, w.num(d.Count), w.num(d.Missing), lo, hi})
		}
		w.table([]string{"column", "count", "missing", "min", "max"}, rows)
	}

	if len(p.Identifiers) > 0 {
		w.heading(3, "Identifiers")
		rows := make([][]string, 0, len(p.Identifiers))
		for _, id := range p.Identifiers {
			rows = append(rows, []string{id.Column, w.num(id.Distinct), w.num(id.Missing)})
		}
		w.table([]string{"column", "distinct", "missing"}, rows)
	}
}

func (w *writer) missing(stage string, r *pipeline.MissingReport) {
	title := "Missing values"
	switch stage {
	case pipeline.StageMissingBefore:
		title += " before cleaning"
	case pipeline.StageMissingAfter:
		title += " after cleaning"
	}
	w.heading(2, title)
	rows := make([][]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		rows = append(rows, []string{c.Column, w.num(c.Missing), w.pct(c.Percent)})
	}
	w.table([]string{"column", "missing", "share"}, rows)

	corr := make([]pipeline.Correlation, 0, len(r.Correlations))
	for _, c := range r.Correlations {
		if !math.IsNaN(c.Value) {
			corr = append(corr, c)
		}
	}
	if len(corr) == 0 {
		return
	}
	sort.SliceStable(corr, func(i, j int) bool {
		return math.Abs(corr[i].Value) > math.Abs(corr[j].Value)
	})
	if len(corr) > MaxCorrelations {
		corr = corr[:MaxCorrelations]
	}
	w.heading(3, "Nullity correlation")
	crow := make([][]string, 0, len(corr))
	for _, c := range corr {
		crow = append(crow, []string{c.A, c.B, w.p.Sprintf("%.3f", c.Value)})
	}
	w.table([]string{"column", "column", "correlation"}, crow)
}

func (w *writer) cooccurrence(c *pipeline.Cooccurrence) {
	w.heading(2, "Sentinel co-occurrence")
	w.line("`%s` in %s rows: %s only in `%s`, %s only in `%s`, %s in both.",
		c.Sentinel, w.num(c.Rows), w.num(c.OnlyA), c.ColumnA, w.num(c.OnlyB), c.ColumnB, w.num(c.Both))
}

// WriteMarkdown writes the Markdown report of run to path atomically.
func WriteMarkdown(path string, run *pipeline.RunReport) error {
	if err := io.WriteBytesFile(path, Markdown(run)); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
