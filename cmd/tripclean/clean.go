package main

import (
	"errors"
	"io"

	"github.com/paveg/tripclean"
	"github.com/paveg/tripclean/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newUsersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Clean the user table",
		Long: `Clean the user table: drop exact duplicates, normalize dates and
categories, apply the user rules, fold rare browsers and providers, and write
the cleaned table with its report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup(cmd, func(c *config.Config) *config.Artifacts { return &c.Users.Artifacts })
			if err != nil {
				return err
			}
			res, err := tripclean.CleanUsers(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newClickstreamCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "clickstream",
		Aliases: []string{"clicks"},
		Short:   "Clean the clickstream table",
		Long: `Clean the clickstream table: report duplicate events, map the
-unknown- sentinel to missing, flag session breaks, apply the duration rules,
and write the cleaned table with its report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup(cmd, func(c *config.Config) *config.Artifacts { return &c.Clickstream.Artifacts })
			if err != nil {
				return err
			}
			res, err := tripclean.CleanClickstream(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newAllCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Clean both tables concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.hasPathOverrides() {
				return errors.New("--input, --output and --report name a single dataset; set the paths in the configuration file for all")
			}
			cfg, logger, err := opts.setup(cmd, nil)
			if err != nil {
				return err
			}
			results, err := tripclean.CleanAll(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results...)
			return nil
		},
	}
}

func printResults(w io.Writer, results ...*tripclean.Result) {
	p := message.NewPrinter(language.English)
	for _, res := range results {
		if res == nil {
			continue
		}
		p.Fprintf(w, "%s: %d rows in, %d rows out -> %s\n",
			res.Dataset, res.Run.InitialRows, res.Run.FinalRows, res.Output)
		if res.Report != "" {
			p.Fprintf(w, "  report: %s\n", res.Report)
		}
		if res.Summary != "" {
			p.Fprintf(w, "  summary: %s\n", res.Summary)
		}
		if res.Metrics != "" {
			p.Fprintf(w, "  metrics: %s\n", res.Metrics)
		}
	}
}
