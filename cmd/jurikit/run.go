package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/miku/jurikit/dateutil"
	"github.com/miku/jurikit/pipeline"
	"github.com/miku/jurikit/runlog"
	"github.com/miku/jurikit/schema"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		all   bool
		since string
		cfg   = a.cfg
	)
	cmd := &cobra.Command{
		Use:   "run [corpus ...]",
		Short: "Fetch, parse and write the dataset of one or more corpora",
		Long: `Runs the pipeline for each corpus in turn: list archives, download and
unpack them, parse every decision and write the dataset. Failed archives,
documents and batches are logged and counted. A corpus whose archive list
cannot be read is skipped; the exit status is non-zero if any corpus failed
that way.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var corpora []*schema.Corpus
			switch {
			case all && len(args) > 0:
				return errors.New("either name corpora or use --all")
			case all:
				corpora = a.registry.Corpora
			case len(args) == 0:
				return errors.New("no corpus given, use --all for all corpora")
			}
			for _, name := range args {
				c, err := a.corpus(name)
				if err != nil {
					return err
				}
				corpora = append(corpora, c)
			}
			if cfg.Output != "" && len(corpora) > 1 {
				return errors.New("--output requires a single corpus")
			}
			if since != "" {
				t, err := dateutil.ParseSince(since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				cfg.Since = t
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			var failed int
			for _, c := range corpora {
				if err := a.runCorpus(ctx, cmd, c); err != nil {
					cmd.PrintErrf("%s: %v\n", c.Name, err)
					failed++
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d corpora failed", failed, len(corpora))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "run all corpora")
	f.StringVar(&since, "since", "", "only archives published on or after this date")
	f.StringVarP(&cfg.Output, "output", "o", cfg.Output, "dataset path, .gz and .zst are compressed (single corpus only)")
	f.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "number of parsing workers")
	f.IntVar(&cfg.FetchWorkers, "fetch-workers", cfg.FetchWorkers, "number of parallel downloads")
	f.IntVarP(&cfg.BatchSize, "batch-size", "b", cfg.BatchSize, "records per write (default: corpus setting)")
	f.DurationVarP(&cfg.Timeout, "timeout", "T", cfg.Timeout, "timeout for a single download")
	f.BoolVar(&cfg.NoFetch, "no-fetch", cfg.NoFetch, "skip download, parse the unpacked archives on disk")
	f.BoolVar(&cfg.KeepArchives, "keep-archives", cfg.KeepArchives, "keep downloaded archives after extraction")
	f.BoolVar(&cfg.Console, "console", cfg.Console, "mirror the run log to stderr")
	return cmd
}

// runCorpus runs a single corpus with its own log file.
func (a *app) runCorpus(ctx context.Context, cmd *cobra.Command, c *schema.Corpus) error {
	l, err := runlog.New(runlog.Options{
		Dir:     a.cfg.LogPath(),
		Corpus:  c.Name,
		Console: a.cfg.Console,
		Verbose: a.cfg.Verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer l.Close()
	summary, err := pipeline.New(c, a.cfg, pipeline.WithLogger(l.Entry)).Run(ctx)
	if err != nil {
		return err
	}
	if _, err := summary.WriteTo(cmd.OutOrStdout()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "log\t%s\n\n", l.Path)
	return nil
}
