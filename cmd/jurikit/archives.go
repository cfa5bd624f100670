package main

import (
	"fmt"

	"github.com/miku/jurikit/dateutil"
	"github.com/miku/jurikit/pipeline"
	"github.com/spf13/cobra"
)

func newArchivesCmd(a *app) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "archives <corpus>",
		Short: "Print the archive names of a corpus, after skip and date filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.corpus(args[0])
			if err != nil {
				return err
			}
			if since != "" {
				if a.cfg.Since, err = dateutil.ParseSince(since); err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
			}
			names, err := pipeline.New(c, a.cfg).Archives(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only archives published on or after this date")
	return cmd
}
