package main

import (
	"github.com/paveg/tripclean/internal/synth"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newGenerateCmd() *cobra.Command {
	var dir string
	opts := synth.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic dirty input files",
		Long: `Write a synthetic user.csv and clickstreams.parquet carrying the defects
the cleaning pipelines handle: duplicates, inconsistent case, impossible ages,
out-of-order dates, unknown country codes, rare browsers and bad durations.
The same seed always produces the same files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := synth.Generate(cmd.Context(), dir, opts)
			if err != nil {
				return err
			}
			p := message.NewPrinter(language.English)
			p.Fprintf(cmd.OutOrStdout(), "wrote %d users to %s\n", res.Users, res.UsersPath)
			p.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", res.Events, res.ClickstreamPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&dir, "dir", "d", ".", "directory receiving the files")
	flags.IntVar(&opts.Users, "users", opts.Users, "number of distinct users")
	flags.IntVar(&opts.MaxEvents, "max-events", opts.MaxEvents, "maximum clickstream events per user")
	flags.Float64Var(&opts.DirtyRate, "dirty-rate", opts.DirtyRate, "probability of each injected defect")
	flags.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	return cmd
}
