// Package tripclean cleans and profiles a travel-booking user table and its
// clickstream. It is the public entry point: a run loads the raw file, applies
// the cleaning stages configured by config.Config, writes the cleaned Parquet
// file and renders the run report.
package tripclean

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/config"
	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/logging"
	"github.com/paveg/tripclean/internal/monitoring"
	"github.com/paveg/tripclean/internal/parallel"
	"github.com/paveg/tripclean/internal/pipeline"
	"github.com/paveg/tripclean/internal/report"
	"github.com/paveg/tripclean/internal/schema"
)

// Dataset names.
const (
	DatasetUsers       = "users"
	DatasetClickstream = "clickstream"
)

// Result is the outcome of one dataset run.
type Result struct {
	Dataset string
	Run     *pipeline.RunReport
	// Written artifact paths; empty when the artifact is disabled.
	Output  string
	Report  string
	Summary string
	Metrics string
}

type dataset struct {
	name      string
	artifacts config.Artifacts
	schema    schema.Schema
	stages    func(config.Config) ([]pipeline.Stage, error)
}

func usersDataset(cfg config.Config) dataset {
	return dataset{name: DatasetUsers, artifacts: cfg.Users.Artifacts, schema: schema.Users(), stages: UserStages}
}

func clickstreamDataset(cfg config.Config) dataset {
	return dataset{name: DatasetClickstream, artifacts: cfg.Clickstream.Artifacts, schema: schema.Clickstream(), stages: ClickstreamStages}
}

// CleanUsers runs the user pipeline configured by cfg.
func CleanUsers(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return run(ctx, cfg, usersDataset(cfg), logger)
}

// CleanClickstream runs the clickstream pipeline configured by cfg.
func CleanClickstream(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return run(ctx, cfg, clickstreamDataset(cfg), logger)
}

// CleanAll runs both pipelines concurrently on cfg.Workers goroutines. The
// pipelines share no state; the first failure cancels the other one.
func CleanAll(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool := parallel.NewWorkerPool(cfg.Workers)
	datasets := []dataset{usersDataset(cfg), clickstreamDataset(cfg)}
	return parallel.ProcessIndexed(ctx, pool, datasets,
		func(ctx context.Context, _ int, d dataset) (*Result, error) {
			return run(ctx, cfg, d, logger)
		})
}

func run(ctx context.Context, cfg config.Config, d dataset, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	stages, err := d.stages(cfg)
	if err != nil {
		return nil, err
	}

	mem := memory.NewGoAllocator()
	loaded, err := io.Load(ctx, d.artifacts.Input, d.artifacts.Format, d.schema, mem)
	if err != nil {
		logger.Error("loading input failed", slog.String("dataset", d.name), slog.String("input", d.artifacts.Input), logging.Err(err))
		return nil, err
	}
	defer loaded.Frame.Release()
	if len(loaded.ExtraColumns) > 0 {
		logger.Warn("ignoring unknown columns",
			slog.String("dataset", d.name), slog.Any("columns", loaded.ExtraColumns))
	}

	metrics := monitoring.NewMetricsCollector(cfg.MetricsCollection)
	clean, rep, err := pipeline.New(d.name, logger, metrics, stages...).Run(ctx, d.artifacts.Input, loaded.Frame)
	if err != nil {
		return nil, err
	}
	defer clean.Release()

	res := &Result{Dataset: d.name, Run: rep, Output: d.artifacts.Output}
	if p := d.artifacts.Report; p != "" {
		if err := report.WriteMarkdown(p, rep); err != nil {
			return nil, err
		}
		res.Report = p
	}
	if p := d.artifacts.Summary; p != "" {
		if err := report.WriteSummary(p, rep); err != nil {
			return nil, err
		}
		res.Summary = p
	}
	if p := d.artifacts.Metrics; p != "" {
		if err := monitoring.WriteTextfile(p, report.Snapshot(rep, metrics.GetMetrics())); err != nil {
			return nil, err
		}
		res.Metrics = p
	}

	stats := metrics.GetSummary()
	logger.Info("dataset cleaned",
		slog.String("dataset", d.name),
		slog.Int("initial_rows", rep.InitialRows),
		slog.Int("final_rows", rep.FinalRows),
		slog.Duration("stage_time", stats.TotalDuration),
		slog.Int64("heap_growth_bytes", stats.TotalMemory),
		slog.String("output", res.Output),
		slog.String("report", res.Report))
	return res, nil
}

func exportOptions(cfg config.Config) io.ParquetOptions {
	opts := io.DefaultParquetOptions()
	opts.Compression = cfg.Compression
	return opts
}

func policy(name string) (pipeline.Policy, error) {
	p, err := pipeline.ParsePolicy(name)
	if err != nil {
		return "", fmt.Errorf("dedup policy: %w", err)
	}
	return p, nil
}

// UserStages builds the stages of the user pipeline.
func UserStages(cfg config.Config) ([]pipeline.Stage, error) {
	dedup, err := policy(cfg.Users.Dedup)
	if err != nil {
		return nil, err
	}
	policies, err := config.Policies(cfg.Users.Rules)
	if err != nil {
		return nil, err
	}
	rules, err := pipeline.UserRules(pipeline.UserRuleOptions{
		AgeMin:   cfg.Users.AgeMin,
		AgeMax:   cfg.Users.AgeMax,
		Policies: policies,
	})
	if err != nil {
		return nil, err
	}

	norm := pipeline.UserNormalizeOptions()
	norm.Sentinel = cfg.Sentinel
	norm.Lowercase = cfg.Users.Lowercase
	norm.SentinelColumns = cfg.Users.SentinelColumns

	clean := schema.CleanUsers()
	stages := []pipeline.Stage{
		pipeline.SentinelAuditStage{ColumnA: schema.UserGender, ColumnB: schema.FirstWebBrowser, Sentinel: cfg.Sentinel},
		pipeline.MissingnessStage{StageName: pipeline.StageMissingBefore},
		pipeline.DedupStage{Policy: dedup},
		pipeline.DedupStage{StageName: pipeline.StageUserIDDuplicates, Keys: []string{schema.UserID}, Policy: pipeline.PolicyReport},
		pipeline.NormalizeStage{Options: norm},
		pipeline.ValidateStage{Rules: rules},
	}
	if len(cfg.Users.Collapse) > 0 {
		stages = append(stages, pipeline.CollapseStage{Specs: cfg.Users.Collapse})
	}
	return append(stages,
		pipeline.ProfileStage{Options: pipeline.ProfileOptions{
			TopN:          cfg.TopN,
			RareThreshold: cfg.RareReportThreshold,
			Categorical:   clean.Categorical(),
			Numeric:       []string{schema.UserAge},
			Dates:         []string{schema.FirstActiveTimestamp, schema.FirstActiveDate, schema.AccountCreatedDate, schema.FirstBookingDate},
			Identifiers:   []string{schema.UserID},
		}},
		pipeline.MissingnessStage{StageName: pipeline.StageMissingAfter},
		pipeline.ExportStage{Path: cfg.Users.Output, Options: exportOptions(cfg)},
	), nil
}

// ClickstreamStages builds the stages of the clickstream pipeline.
func ClickstreamStages(cfg config.Config) ([]pipeline.Stage, error) {
	dedup, err := policy(cfg.Clickstream.Dedup)
	if err != nil {
		return nil, err
	}
	policies, err := config.Policies(cfg.Clickstream.Rules)
	if err != nil {
		return nil, err
	}
	rules, err := pipeline.ClickstreamRules(pipeline.ClickstreamRuleOptions{
		ExtremeDuration: cfg.Clickstream.ExtremeDurationSeconds,
		Policies:        policies,
	})
	if err != nil {
		return nil, err
	}

	norm := pipeline.ClickstreamNormalizeOptions()
	norm.Sentinel = cfg.Sentinel
	norm.Lowercase = cfg.Clickstream.Lowercase
	norm.SentinelColumns = cfg.Clickstream.SentinelColumns
	norm.SessionBreak = cfg.Clickstream.SessionBreakSeconds

	clean := schema.CleanClickstream()
	stages := []pipeline.Stage{
		pipeline.SentinelAuditStage{ColumnA: schema.SessionActionType, ColumnB: schema.SessionActionDetail, Sentinel: cfg.Sentinel},
		pipeline.MissingnessStage{StageName: pipeline.StageMissingBefore},
		pipeline.DedupStage{Policy: dedup},
		pipeline.NormalizeStage{Options: norm},
		pipeline.ValidateStage{Rules: rules},
	}
	if len(cfg.Clickstream.Collapse) > 0 {
		stages = append(stages, pipeline.CollapseStage{Specs: cfg.Clickstream.Collapse})
	}
	return append(stages,
		pipeline.ProfileStage{Options: pipeline.ProfileOptions{
			TopN:          cfg.TopN,
			RareThreshold: cfg.RareReportThreshold,
			Categorical:   clean.Categorical(),
			Numeric:       []string{schema.TimePassedInSeconds},
			Identifiers:   []string{schema.SessionUserID},
		}},
		pipeline.MissingnessStage{StageName: pipeline.StageMissingAfter},
		pipeline.ExportStage{Path: cfg.Clickstream.Output, Options: exportOptions(cfg)},
	), nil
}
