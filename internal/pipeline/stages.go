package pipeline

import (
	"context"

	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/io"
)

// Stage names.
const (
	StageSentinelAudit    = "sentinel_audit"
	StageMissingBefore    = "missingness_before"
	StageDeduplicate      = "deduplicate"
	StageUserIDDuplicates = "user_id_duplicates"
	StageNormalize        = "normalize"
	StageValidate         = "validate"
	StageCollapse         = "collapse"
	StageProfile          = "profile"
	StageMissingAfter     = "missingness_after"
	StageExport           = "export"
)

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// DedupStage runs Deduplicate.
type DedupStage struct {
	StageName string
	Keys      []string
	Policy    Policy
}

func (s DedupStage) Name() string { return nameOr(s.StageName, StageDeduplicate) }

func (s DedupStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	out, res, err := Deduplicate(df, s.Keys, s.Policy)
	if err != nil {
		return nil, nil, err
	}
	return out, &StageReport{Detail: res}, nil
}

// NormalizeStage runs Normalize.
type NormalizeStage struct {
	Options NormalizeOptions
}

func (s NormalizeStage) Name() string { return StageNormalize }

func (s NormalizeStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	out, res, err := Normalize(df, s.Options)
	if err != nil {
		return nil, nil, err
	}
	return out, &StageReport{Detail: res}, nil
}

// ValidateStage runs Validate.
type ValidateStage struct {
	Rules []Rule
}

func (s ValidateStage) Name() string { return StageValidate }

func (s ValidateStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	out, res, err := Validate(df, s.Rules)
	if err != nil {
		return nil, nil, err
	}
	return out, &StageReport{Detail: res}, nil
}

// CollapseStage runs Collapse.
type CollapseStage struct {
	Specs []CollapseSpec
}

func (s CollapseStage) Name() string { return StageCollapse }

func (s CollapseStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	out, res, err := Collapse(df, s.Specs)
	if err != nil {
		return nil, nil, err
	}
	return out, &StageReport{Detail: res}, nil
}

// ProfileStage records a Profile of the table.
type ProfileStage struct {
	Options ProfileOptions
}

func (s ProfileStage) Name() string { return StageProfile }

func (s ProfileStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	p, err := ProfileTable(df, s.Options)
	if err != nil {
		return nil, nil, err
	}
	return unchanged(df), &StageReport{Detail: p}, nil
}

// MissingnessStage records a MissingReport of the table.
type MissingnessStage struct {
	StageName string
}

func (s MissingnessStage) Name() string { return nameOr(s.StageName, StageMissingBefore) }

func (s MissingnessStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	return unchanged(df), &StageReport{Detail: Missingness(df)}, nil
}

// SentinelAuditStage counts sentinel co-occurrence between two columns.
type SentinelAuditStage struct {
	ColumnA  string
	ColumnB  string
	Sentinel string
}

func (s SentinelAuditStage) Name() string { return StageSentinelAudit }

func (s SentinelAuditStage) Apply(_ context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	c, err := SentinelCooccurrence(df, s.ColumnA, s.ColumnB, nameOr(s.Sentinel, DefaultSentinel))
	if err != nil {
		return nil, nil, err
	}
	return unchanged(df), &StageReport{Detail: &c}, nil
}

// ExportResult describes a written Parquet file.
type ExportResult struct {
	Path        string
	Rows        int
	Compression string
}

// ExportStage writes the table to a Parquet file. The file is replaced
// atomically, so a failed run never leaves partial output.
type ExportStage struct {
	Path    string
	Options io.ParquetOptions
}

func (s ExportStage) Name() string { return StageExport }

func (s ExportStage) Apply(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, *StageReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := io.WriteParquetFile(s.Path, df, s.Options); err != nil {
		return nil, nil, err
	}
	res := &ExportResult{Path: s.Path, Rows: df.Len(), Compression: s.Options.Compression}
	return unchanged(df), &StageReport{Detail: res}, nil
}
