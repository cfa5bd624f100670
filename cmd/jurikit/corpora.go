package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCorporaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "corpora",
		Short: "List the available corpora",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range a.registry.Corpora {
				listing := string(c.Listing.Kind)
				if c.Listing.File != "" {
					listing = c.Listing.File
				}
				fmt.Fprintf(tw, "%s\t%d keys\t%s\t%s\n", c.Name, len(c.Keys), listing, c.Description)
			}
			return tw.Flush()
		},
	}
}
