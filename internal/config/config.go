// Package config provides configuration management for tripclean runs.
//
// A Config starts from NewConfig defaults, is overlaid by an optional JSON or
// YAML file and then by TRIPCLEAN_* environment variables, and is validated
// before any data is read.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/logging"
	"github.com/paveg/tripclean/internal/pipeline"
	"github.com/paveg/tripclean/internal/schema"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of a cleaning run.
type Config struct {
	Users       UsersConfig       `json:"users" yaml:"users" env-prefix:"TRIPCLEAN_USERS_"`
	Clickstream ClickstreamConfig `json:"clickstream" yaml:"clickstream" env-prefix:"TRIPCLEAN_CLICKSTREAM_"`

	// Sentinel is the placeholder meaning "unknown" in the raw files.
	Sentinel    string `json:"sentinel" yaml:"sentinel" env:"TRIPCLEAN_SENTINEL"`
	Compression string `json:"compression" yaml:"compression" env:"TRIPCLEAN_COMPRESSION"`
	// TopN values are listed per categorical column; values seen fewer than
	// RareReportThreshold times are listed as rare.
	TopN                int `json:"top_n" yaml:"top_n" env:"TRIPCLEAN_TOP_N"`
	RareReportThreshold int `json:"rare_report_threshold" yaml:"rare_report_threshold" env:"TRIPCLEAN_RARE_THRESHOLD"`
	// Workers bounds the pipelines run concurrently by "all".
	Workers int `json:"workers" yaml:"workers" env:"TRIPCLEAN_WORKERS"`

	LogFormat         string `json:"log_format" yaml:"log_format" env:"TRIPCLEAN_LOG_FORMAT"`
	LogLevel          string `json:"log_level" yaml:"log_level" env:"TRIPCLEAN_LOG_LEVEL"`
	MetricsCollection bool   `json:"metrics_collection" yaml:"metrics_collection" env:"TRIPCLEAN_METRICS"`
}

// Artifacts are the input and output paths of one dataset. Summary (a YAML
// digest of the report) and Metrics (a Prometheus textfile) are optional and
// disabled when empty.
type Artifacts struct {
	Input   string `json:"input" yaml:"input" env:"INPUT"`
	Format  string `json:"format" yaml:"format" env:"FORMAT"`
	Output  string `json:"output" yaml:"output" env:"OUTPUT"`
	Report  string `json:"report" yaml:"report" env:"REPORT"`
	Summary string `json:"summary" yaml:"summary" env:"SUMMARY"`
	Metrics string `json:"metrics" yaml:"metrics" env:"METRICS"`
}

// UsersConfig configures the user pipeline.
type UsersConfig struct {
	Artifacts `yaml:",inline"`

	AgeMin          int64                   `json:"age_min" yaml:"age_min" env:"AGE_MIN"`
	AgeMax          int64                   `json:"age_max" yaml:"age_max" env:"AGE_MAX"`
	Dedup           string                  `json:"dedup" yaml:"dedup" env:"DEDUP"`
	Lowercase       []string                `json:"lowercase_columns" yaml:"lowercase_columns" env:"LOWERCASE_COLUMNS"`
	SentinelColumns []string                `json:"sentinel_columns" yaml:"sentinel_columns" env:"SENTINEL_COLUMNS"`
	Rules           map[string]string       `json:"rules" yaml:"rules" env:"RULES"`
	Collapse        []pipeline.CollapseSpec `json:"collapse" yaml:"collapse"`
}

// ClickstreamConfig configures the clickstream pipeline.
type ClickstreamConfig struct {
	Artifacts `yaml:",inline"`

	SessionBreakSeconds    float64                 `json:"session_break_seconds" yaml:"session_break_seconds" env:"SESSION_BREAK_SECONDS"`
	ExtremeDurationSeconds float64                 `json:"extreme_duration_seconds" yaml:"extreme_duration_seconds" env:"EXTREME_DURATION_SECONDS"`
	Dedup                  string                  `json:"dedup" yaml:"dedup" env:"DEDUP"`
	Lowercase              []string                `json:"lowercase_columns" yaml:"lowercase_columns" env:"LOWERCASE_COLUMNS"`
	SentinelColumns        []string                `json:"sentinel_columns" yaml:"sentinel_columns" env:"SENTINEL_COLUMNS"`
	Rules                  map[string]string       `json:"rules" yaml:"rules" env:"RULES"`
	Collapse               []pipeline.CollapseSpec `json:"collapse" yaml:"collapse"`
}

// Default configuration values
const (
	DefaultUsersInput       = "data/user.csv"
	DefaultClickstreamInput = "data/clickstreams.parquet"
	DefaultOutputDir        = "out"
	DefaultWorkers          = 2
	DefaultLogFormat        = logging.FormatPretty
	DefaultLogLevel         = "info"
)

// DefaultUserCollapse is the rare-value folding of the user table.
func DefaultUserCollapse() []pipeline.CollapseSpec {
	return []pipeline.CollapseSpec{
		{Column: schema.FirstWebBrowser, Threshold: 500, Label: "Other"},
		{Column: schema.MarketingProvider, Threshold: 100, Label: "other"},
	}
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	users := pipeline.UserNormalizeOptions()
	clicks := pipeline.ClickstreamNormalizeOptions()

	return Config{
		Users: UsersConfig{
			Artifacts: Artifacts{
				Input:  DefaultUsersInput,
				Format: io.FormatAuto,
				Output: filepath.Join(DefaultOutputDir, "users_clean.parquet"),
				Report: filepath.Join(DefaultOutputDir, "users_report.md"),
			},
			AgeMin:          pipeline.DefaultAgeMin,
			AgeMax:          pipeline.DefaultAgeMax,
			Dedup:           string(pipeline.PolicyDrop),
			Lowercase:       users.Lowercase,
			SentinelColumns: users.SentinelColumns,
			Rules:           policyNames(pipeline.DefaultUserPolicies()),
			Collapse:        DefaultUserCollapse(),
		},
		Clickstream: ClickstreamConfig{
			Artifacts: Artifacts{
				Input:  DefaultClickstreamInput,
				Format: io.FormatAuto,
				Output: filepath.Join(DefaultOutputDir, "clickstreams_clean.parquet"),
				Report: filepath.Join(DefaultOutputDir, "clickstreams_report.md"),
			},
			SessionBreakSeconds:    pipeline.DefaultSessionBreakSeconds,
			ExtremeDurationSeconds: pipeline.DefaultExtremeDurationSeconds,
			Dedup:                  string(pipeline.PolicyReport),
			Lowercase:              []string{},
			SentinelColumns:        clicks.SentinelColumns,
			Rules:                  policyNames(pipeline.DefaultClickstreamPolicies()),
			Collapse:               []pipeline.CollapseSpec{},
		},
		Sentinel:            pipeline.DefaultSentinel,
		Compression:         "snappy",
		TopN:                pipeline.DefaultTopN,
		RareReportThreshold: pipeline.DefaultRareThreshold,
		Workers:             DefaultWorkers,
		LogFormat:           DefaultLogFormat,
		LogLevel:            DefaultLogLevel,
		MetricsCollection:   true,
	}
}

func policyNames(policies map[string]pipeline.Policy) map[string]string {
	out := make(map[string]string, len(policies))
	for name, p := range policies {
		out[name] = string(p)
	}
	return out
}

// WithDefaults returns a new configuration with default values filled in for
// zero values. Slices and maps are only filled when nil, so an explicit empty
// list disables the feature.
func (c Config) WithDefaults() Config {
	d := NewConfig()

	if c.Users.Input == "" {
		c.Users.Input = d.Users.Input
	}
	if c.Users.Format == "" {
		c.Users.Format = d.Users.Format
	}
	if c.Users.Output == "" {
		c.Users.Output = d.Users.Output
	}
	if c.Users.Report == "" {
		c.Users.Report = d.Users.Report
	}
	if c.Users.AgeMin == 0 && c.Users.AgeMax == 0 {
		c.Users.AgeMin, c.Users.AgeMax = d.Users.AgeMin, d.Users.AgeMax
	}
	if c.Users.Dedup == "" {
		c.Users.Dedup = d.Users.Dedup
	}
	if c.Users.Lowercase == nil {
		c.Users.Lowercase = d.Users.Lowercase
	}
	if c.Users.SentinelColumns == nil {
		c.Users.SentinelColumns = d.Users.SentinelColumns
	}
	if c.Users.Rules == nil {
		c.Users.Rules = d.Users.Rules
	}
	if c.Users.Collapse == nil {
		c.Users.Collapse = d.Users.Collapse
	}

	if c.Clickstream.Input == "" {
		c.Clickstream.Input = d.Clickstream.Input
	}
	if c.Clickstream.Format == "" {
		c.Clickstream.Format = d.Clickstream.Format
	}
	if c.Clickstream.Output == "" {
		c.Clickstream.Output = d.Clickstream.Output
	}
	if c.Clickstream.Report == "" {
		c.Clickstream.Report = d.Clickstream.Report
	}
	if c.Clickstream.SessionBreakSeconds == 0 {
		c.Clickstream.SessionBreakSeconds = d.Clickstream.SessionBreakSeconds
	}
	if c.Clickstream.ExtremeDurationSeconds == 0 {
		c.Clickstream.ExtremeDurationSeconds = d.Clickstream.ExtremeDurationSeconds
	}
	if c.Clickstream.Dedup == "" {
		c.Clickstream.Dedup = d.Clickstream.Dedup
	}
	if c.Clickstream.SentinelColumns == nil {
		c.Clickstream.SentinelColumns = d.Clickstream.SentinelColumns
	}
	if c.Clickstream.Rules == nil {
		c.Clickstream.Rules = d.Clickstream.Rules
	}

	if c.Sentinel == "" {
		c.Sentinel = d.Sentinel
	}
	if c.Compression == "" {
		c.Compression = d.Compression
	}
	if c.TopN == 0 {
		c.TopN = d.TopN
	}
	if c.RareReportThreshold == 0 {
		c.RareReportThreshold = d.RareReportThreshold
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}

	// MetricsCollection is not defaulted: false is a valid explicit choice.
	return c
}

// LoadFromJSON loads configuration from JSON data, overlaid on the defaults.
func LoadFromJSON(data []byte) (Config, error) {
	config := NewConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data, overlaid on the defaults.
func LoadFromYAML(data []byte) (Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a .json, .yaml or .yml file.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return LoadFromJSON(data)
	case ".yaml", ".yml":
		return LoadFromYAML(data)
	default:
		return Config{}, errors.NewConfigError("file", "unsupported config file format: %s", ext)
	}
}

// ApplyEnv overlays TRIPCLEAN_* environment variables on c.
func ApplyEnv(c *Config) error {
	if err := cleanenv.ReadEnv(c); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

// Load builds the configuration of a run: defaults, then the file at path
// when path is not empty, then the environment. The result is validated.
func Load(path string) (Config, error) {
	config := NewConfig()
	if path != "" {
		var err error
		if config, err = LoadFromFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate validates the configuration and returns a *errors.ConfigError
// naming the first invalid field.
func (c *Config) Validate() error {
	if c.Users.AgeMin < 0 {
		return errors.NewConfigError("users.age_min", "must be non-negative, got %d", c.Users.AgeMin)
	}
	if c.Users.AgeMin > c.Users.AgeMax {
		return errors.NewConfigError("users.age_max", "must not be below age_min (%d), got %d", c.Users.AgeMin, c.Users.AgeMax)
	}
	if c.Clickstream.SessionBreakSeconds <= 0 {
		return errors.NewConfigError("clickstream.session_break_seconds", "must be positive, got %g", c.Clickstream.SessionBreakSeconds)
	}
	if c.Clickstream.ExtremeDurationSeconds <= 0 {
		return errors.NewConfigError("clickstream.extreme_duration_seconds", "must be positive, got %g", c.Clickstream.ExtremeDurationSeconds)
	}

	if err := validateDataset("users", c.Users.Artifacts, c.Users.Dedup, c.Users.Rules,
		c.Users.Lowercase, c.Users.SentinelColumns, c.Users.Collapse, schema.Users()); err != nil {
		return err
	}
	if err := validateDataset("clickstream", c.Clickstream.Artifacts, c.Clickstream.Dedup, c.Clickstream.Rules,
		c.Clickstream.Lowercase, c.Clickstream.SentinelColumns, c.Clickstream.Collapse, schema.Clickstream()); err != nil {
		return err
	}

	if c.Sentinel == "" {
		return errors.NewConfigError("sentinel", "must not be empty")
	}
	if _, err := io.ParseCompression(c.Compression); err != nil {
		return errors.NewConfigError("compression", "%v", err)
	}
	if c.TopN < 1 {
		return errors.NewConfigError("top_n", "must be at least 1, got %d", c.TopN)
	}
	if c.RareReportThreshold < 1 {
		return errors.NewConfigError("rare_report_threshold", "must be at least 1, got %d", c.RareReportThreshold)
	}
	if c.Workers < 1 {
		return errors.NewConfigError("workers", "must be at least 1, got %d", c.Workers)
	}
	if !slices.Contains(logging.Formats, c.LogFormat) {
		return errors.NewConfigError("log_format", "must be one of %s, got %q", strings.Join(logging.Formats, ", "), c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errors.NewConfigError("log_level", "%v", err)
	}
	return nil
}

func validateDataset(name string, a Artifacts, dedup string, rules map[string]string,
	lowercase, sentinel []string, collapse []pipeline.CollapseSpec, s schema.Schema,
) error {
	if strings.TrimSpace(a.Input) == "" {
		return errors.NewConfigError(name+".input", "must not be empty")
	}
	if strings.TrimSpace(a.Output) == "" {
		return errors.NewConfigError(name+".output", "must not be empty")
	}
	if _, err := io.DetectFormat(a.Input, a.Format); err != nil {
		return errors.NewConfigError(name+".format", "%v", err)
	}
	if _, err := pipeline.ParsePolicy(dedup); err != nil {
		return errors.NewConfigError(name+".dedup", "%v", err)
	}

	known := pipeline.RuleNames(name)
	for rule, policy := range rules {
		if !slices.Contains(known, rule) {
			return errors.NewConfigError(name+".rules", "unknown rule %q (known: %s)", rule, strings.Join(known, ", "))
		}
		if _, err := pipeline.ParsePolicy(policy); err != nil {
			return errors.NewConfigError(name+".rules."+rule, "%v", err)
		}
	}

	categorical := s.Categorical()
	for field, cols := range map[string][]string{"lowercase_columns": lowercase, "sentinel_columns": sentinel} {
		for _, col := range cols {
			if !slices.Contains(categorical, col) {
				return errors.NewConfigError(name+"."+field, "%q is not a categorical column of %s", col, name)
			}
		}
	}
	for _, spec := range collapse {
		if !slices.Contains(categorical, spec.Column) {
			return errors.NewConfigError(name+".collapse", "%q is not a categorical column of %s", spec.Column, name)
		}
		if spec.Threshold < 1 {
			return errors.NewConfigError(name+".collapse."+spec.Column, "threshold must be at least 1, got %d", spec.Threshold)
		}
		if spec.Label == "" {
			return errors.NewConfigError(name+".collapse."+spec.Column, "label must not be empty")
		}
	}
	return nil
}

// Policies converts configured rule policies for the pipeline.
func Policies(rules map[string]string) (map[string]pipeline.Policy, error) {
	out := make(map[string]pipeline.Policy, len(rules))
	for name, raw := range rules {
		p, err := pipeline.ParsePolicy(raw)
		if err != nil {
			return nil, errors.NewConfigError("rules."+name, "%v", err)
		}
		out[name] = p
	}
	return out, nil
}
