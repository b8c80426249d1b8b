package report

import (
	"fmt"
	"time"

	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/monitoring"
	"github.com/paveg/tripclean/internal/pipeline"
	"github.com/paveg/tripclean/internal/version"
	"gopkg.in/yaml.v3"
)

// Summary is the machine-readable digest of a run.
type Summary struct {
	RunID           string             `yaml:"run_id"`
	ToolVersion     string             `yaml:"tool_version"`
	Dataset         string             `yaml:"dataset"`
	Input           string             `yaml:"input"`
	Output          string             `yaml:"output,omitempty"`
	StartedAt       time.Time          `yaml:"started_at"`
	DurationSeconds float64            `yaml:"duration_seconds"`
	InitialRows     int                `yaml:"initial_rows"`
	FinalRows       int                `yaml:"final_rows"`
	Provenance      []ProvenanceEntry  `yaml:"provenance"`
	Stages          []StageEntry       `yaml:"stages"`
	Duplicates      []DuplicateEntry   `yaml:"duplicates,omitempty"`
	Rules           []RuleEntry        `yaml:"rules,omitempty"`
	Collapse        []CollapseEntry    `yaml:"collapse,omitempty"`
	Missing         map[string][]Field `yaml:"missing,omitempty"`
}

// ProvenanceEntry is one step of the row count chain.
type ProvenanceEntry struct {
	Step string `yaml:"step"`
	Rows int    `yaml:"rows"`
}

// StageEntry is the row accounting of one stage.
type StageEntry struct {
	Name            string  `yaml:"name"`
	RowsIn          int     `yaml:"rows_in"`
	RowsOut         int     `yaml:"rows_out"`
	Removed         int     `yaml:"removed"`
	DurationSeconds float64 `yaml:"duration_seconds"`
}

// DuplicateEntry summarizes one deduplication stage.
type DuplicateEntry struct {
	Stage      string   `yaml:"stage"`
	Keys       []string `yaml:"keys,omitempty"`
	Policy     string   `yaml:"policy"`
	Duplicates int      `yaml:"duplicates"`
	Removed    int      `yaml:"removed"`
}

// RuleEntry summarizes one validation rule.
type RuleEntry struct {
	Name       string `yaml:"name"`
	Policy     string `yaml:"policy"`
	Violations int    `yaml:"violations"`
}

// CollapseEntry summarizes the collapse of one column.
type CollapseEntry struct {
	Column       string            `yaml:"column"`
	Threshold    int               `yaml:"threshold"`
	Label        string            `yaml:"label"`
	Kept         int               `yaml:"kept"`
	RowsRemapped int               `yaml:"rows_remapped"`
	Mapping      map[string]string `yaml:"mapping,omitempty"`
}

// Field is the missing count of one column.
type Field struct {
	Column  string  `yaml:"column"`
	Missing int     `yaml:"missing"`
	Percent float64 `yaml:"percent"`
}

// Summarize builds the Summary of run.
func Summarize(run *pipeline.RunReport) Summary {
	s := Summary{
		RunID:           run.RunID,
		ToolVersion:     version.Info().Short(),
		Dataset:         run.Dataset,
		Input:           run.Input,
		StartedAt:       run.StartedAt.UTC(),
		DurationSeconds: run.Duration.Seconds(),
		InitialRows:     run.InitialRows,
		FinalRows:       run.FinalRows,
	}
	for _, step := range run.Provenance() {
		s.Provenance = append(s.Provenance, ProvenanceEntry{Step: step.Label, Rows: step.Rows})
	}

	for _, st := range run.Stages {
		s.Stages = append(s.Stages, StageEntry{
			Name:            st.Stage,
			RowsIn:          st.RowsIn,
			RowsOut:         st.RowsOut,
			Removed:         st.Removed(),
			DurationSeconds: st.Duration.Seconds(),
		})

		switch d := st.Detail.(type) {
		case *pipeline.DedupResult:
			s.Duplicates = append(s.Duplicates, DuplicateEntry{
				Stage:      st.Stage,
				Keys:       d.Keys,
				Policy:     string(d.Policy),
				Duplicates: d.Duplicates,
				Removed:    d.Removed,
			})
		case *pipeline.ValidationResult:
			for _, r := range d.Rules {
				s.Rules = append(s.Rules, RuleEntry{Name: r.Rule, Policy: string(r.Policy), Violations: r.Violations})
			}
		case []pipeline.CollapseResult:
			for _, r := range d {
				s.Collapse = append(s.Collapse, CollapseEntry{
					Column:       r.Spec.Column,
					Threshold:    r.Spec.Threshold,
					Label:        r.Spec.Label,
					Kept:         len(r.Kept),
					RowsRemapped: r.RowsRemapped,
					Mapping:      r.Mapping(),
				})
			}
		case *pipeline.MissingReport:
			if s.Missing == nil {
				s.Missing = make(map[string][]Field)
			}
			fields := make([]Field, 0, len(d.Columns))
			for _, c := range d.Columns {
				fields = append(fields, Field{Column: c.Column, Missing: c.Missing, Percent: c.Percent})
			}
			s.Missing[st.Stage] = fields
		case *pipeline.ExportResult:
			s.Output = d.Path
		}
	}
	return s
}

// YAML encodes the summary of run.
func YAML(run *pipeline.RunReport) ([]byte, error) {
	out, err := yaml.Marshal(Summarize(run))
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return out, nil
}

// WriteSummary writes the YAML summary of run to path atomically.
func WriteSummary(path string, run *pipeline.RunReport) error {
	out, err := YAML(run)
	if err != nil {
		return err
	}
	if err := io.WriteBytesFile(path, out); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}

// Snapshot converts run and the operations recorded during it into the
// metrics snapshot exported to Prometheus.
func Snapshot(run *pipeline.RunReport, ops []monitoring.OperationMetrics) monitoring.Snapshot {
	snap := monitoring.Snapshot{
		Dataset:     run.Dataset,
		InitialRows: run.InitialRows,
		FinalRows:   run.FinalRows,
		Operations:  ops,
	}
	for _, st := range run.Stages {
		v, ok := st.Detail.(*pipeline.ValidationResult)
		if !ok {
			continue
		}
		for _, r := range v.Rules {
			snap.Rules = append(snap.Rules, monitoring.RuleCount{Rule: r.Rule, Policy: string(r.Policy), Violations: r.Violations})
		}
	}
	return snap
}
