package main

import (
	"github.com/miku/jurikit"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s version %s\n", jurikit.AppName, jurikit.Version)
		},
	}
}
