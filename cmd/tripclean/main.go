// Command tripclean cleans the travel user table and its clickstream and
// writes the cleaned Parquet files with their reports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/paveg/tripclean/internal/config"
	"github.com/paveg/tripclean/internal/logging"
	"github.com/paveg/tripclean/internal/version"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logFormat  string
	logLevel   string
	input      string
	output     string
	report     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "tripclean",
		Short: "Clean and profile travel user and clickstream tables",
		Long: `tripclean loads the raw user table (CSV) and the clickstream table
(Parquet), removes duplicates, normalizes fields, applies the validation
rules, folds rare categories and writes the cleaned tables as Parquet
together with a Markdown report of every decision.

Settings come from defaults, then the --config file, then TRIPCLEAN_*
environment variables, then command line flags.`,
		Version:       version.Info().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (.json, .yaml or .yml)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: pretty, json or text")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVarP(&opts.input, "input", "i", "", "input file of the dataset")
	flags.StringVarP(&opts.output, "output", "o", "", "cleaned Parquet output of the dataset")
	flags.StringVarP(&opts.report, "report", "r", "", "Markdown report of the dataset")

	root.AddCommand(
		newUsersCmd(opts),
		newClickstreamCmd(opts),
		newAllCmd(opts),
		newGenerateCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration, applies the flag overrides and builds the
// logger. The path flags go to the artifacts returned by pick; pick may be
// nil when no single dataset is targeted.
func (o *options) setup(cmd *cobra.Command, pick func(*config.Config) *config.Artifacts) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if pick != nil {
		o.override(pick(&cfg))
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogFormat, level, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func (o *options) override(a *config.Artifacts) {
	if o.input != "" {
		a.Input = o.input
	}
	if o.output != "" {
		a.Output = o.output
	}
	if o.report != "" {
		a.Report = o.report
	}
}

// hasPathOverrides reports whether any dataset path flag was given.
func (o *options) hasPathOverrides() bool {
	return o.input != "" || o.output != "" || o.report != ""
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Info()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Short())
				return
			}
			fmt.Fprint(cmd.OutOrStdout(), info.String())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
