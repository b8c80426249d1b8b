// Package pipeline implements the cleaning stages and the runner that chains
// them: deduplication, field normalization, rule validation, rare-category
// collapsing, profiling, missingness reporting and export.
//
// Every stage is a function from a table to a (possibly smaller) table plus a
// report fragment. Stages never mutate their input.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/logging"
	"github.com/paveg/tripclean/internal/monitoring"
)

// Policy decides what happens to rows a stage flags.
type Policy string

const (
	// PolicyDrop removes flagged rows and reports them.
	PolicyDrop Policy = "drop"
	// PolicyReport keeps flagged rows and only reports them.
	PolicyReport Policy = "report"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyDrop:
		return PolicyDrop, nil
	case PolicyReport:
		return PolicyReport, nil
	default:
		return "", fmt.Errorf("unknown policy %q (want drop or report)", s)
	}
}

// Stage is one step of a pipeline.
type Stage interface {
	Name() string
	Apply(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error)
}

// StageReport is what a stage changed. Detail holds the stage specific
// result (*DedupResult, *ValidationResult, ...).
type StageReport struct {
	Stage    string
	RowsIn   int
	RowsOut  int
	Duration time.Duration
	Detail   any
}

// Removed returns the number of rows the stage dropped.
func (r *StageReport) Removed() int {
	return r.RowsIn - r.RowsOut
}

// ProvenanceStep is the row count after one step of a run.
type ProvenanceStep struct {
	Label string
	Rows  int
}

// RunReport describes one pipeline run.
type RunReport struct {
	RunID       string
	Dataset     string
	Input       string
	StartedAt   time.Time
	Duration    time.Duration
	InitialRows int
	FinalRows   int
	Stages      []*StageReport
}

// Provenance returns the row count chain of the run: initial count, the count
// after every row-removing step and the final count. Validation contributes one
// step per drop rule, computed from the cumulative union of their masks.
func (r *RunReport) Provenance() []ProvenanceStep {
	steps := []ProvenanceStep{{Label: "initial", Rows: r.InitialRows}}
	for _, st := range r.Stages {
		if v, ok := st.Detail.(*ValidationResult); ok {
			steps = append(steps, v.Cumulative...)
			continue
		}
		if st.Removed() > 0 {
			steps = append(steps, ProvenanceStep{Label: "after " + st.Stage, Rows: st.RowsOut})
		}
	}
	return append(steps, ProvenanceStep{Label: "final", Rows: r.FinalRows})
}

// Stage returns the first report of the named stage.
func (r *RunReport) Stage(name string) (*StageReport, bool) {
	for _, st := range r.Stages {
		if st.Stage == name {
			return st, true
		}
	}
	return nil, false
}

// Pipeline runs stages in order over one table.
type Pipeline struct {
	dataset string
	stages  []Stage
	logger  *slog.Logger
	metrics *monitoring.MetricsCollector
}

// New creates a pipeline for the named dataset. A nil metrics collector
// disables metrics.
func New(dataset string, logger *slog.Logger, metrics *monitoring.MetricsCollector, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector(false)
	}
	return &Pipeline{
		dataset: dataset,
		stages:  stages,
		logger:  logger.With(slog.String("dataset", dataset)),
		metrics: metrics,
	}
}

// Run applies every stage to df. The returned table is owned by the caller;
// df itself is left untouched. Intermediate tables are released as soon as
// the next stage has replaced them.
func (p *Pipeline) Run(ctx context.Context, input string, df *dataframe.DataFrame) (*dataframe.DataFrame, *RunReport, error) {
	report := &RunReport{
		RunID:       uuid.NewString(),
		Dataset:     p.dataset,
		Input:       input,
		StartedAt:   time.Now(),
		InitialRows: df.Len(),
	}
	log := p.logger.With(slog.String("run_id", report.RunID))
	log.Info("pipeline started", slog.Int("rows", df.Len()), slog.Int("stages", len(p.stages)))

	current := df
	release := func() {
		if current != df {
			current.Release()
		}
	}
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			release()
			return nil, nil, err
		}

		var (
			next *dataframe.DataFrame
			sr   *StageReport
		)
		start := time.Now()
		err := p.metrics.RecordOperation(p.dataset+"."+stage.Name(), func() (int64, error) {
			var err error
			next, sr, err = stage.Apply(ctx, current)
			if err != nil {
				return 0, err
			}
			return int64(current.Len()), nil
		})
		if err != nil {
			log.Error("stage failed", slog.String("stage", stage.Name()), logging.Err(err))
			release()
			return nil, nil, fmt.Errorf("%s stage %s: %w", p.dataset, stage.Name(), err)
		}

		sr.Stage = stage.Name()
		sr.RowsIn = current.Len()
		sr.RowsOut = next.Len()
		sr.Duration = time.Since(start)
		report.Stages = append(report.Stages, sr)

		attrs := []any{
			slog.String("stage", sr.Stage),
			slog.Int("rows_in", sr.RowsIn),
			slog.Int("rows_out", sr.RowsOut),
			slog.Duration("duration", sr.Duration),
		}
		if sr.Removed() > 0 {
			log.Info("stage dropped rows", append(attrs, slog.Int("removed", sr.Removed()))...)
		} else {
			log.Debug("stage complete", attrs...)
		}

		if next != current {
			release()
		}
		current = next
	}
	if current == df {
		current = unchanged(df)
	}

	report.FinalRows = current.Len()
	report.Duration = time.Since(report.StartedAt)
	log.Info("pipeline finished",
		slog.Int("initial_rows", report.InitialRows),
		slog.Int("final_rows", report.FinalRows),
		slog.Duration("duration", report.Duration))

	return current, report, nil
}

// unchanged is the result of stages that only report: a new reference to the
// same data, so the caller can release input and output independently.
func unchanged(df *dataframe.DataFrame) *dataframe.DataFrame {
	return df.Drop()
}
