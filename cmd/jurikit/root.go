package main

import (
	"fmt"

	"github.com/miku/jurikit"
	"github.com/miku/jurikit/config"
	"github.com/miku/jurikit/schema"
	"github.com/spf13/cobra"
)

// app carries the state shared by all commands.
type app struct {
	cfg        *config.Config
	schemaFile string
	registry   *schema.Registry
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}
	root := &cobra.Command{
		Use:               jurikit.AppName,
		Short:             "Turn DILA court decision archives into JSON lines",
		Long:              docs,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadSchema,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&cfg.DataDir, "data-dir", "d", cfg.DataDir, "root directory for all data")
	pf.StringVar(&cfg.ListDir, "list-dir", cfg.ListDir, "directory with archive list files (default: data dir)")
	pf.StringVar(&a.schemaFile, "schema", "", "corpus schema file, replaces the builtin corpora")
	pf.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "verbose logging")
	root.AddCommand(
		newRunCmd(a),
		newParseCmd(a),
		newArchivesCmd(a),
		newCorporaCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) loadSchema(cmd *cobra.Command, args []string) error {
	var err error
	if a.schemaFile != "" {
		a.registry, err = schema.LoadFile(a.schemaFile)
	} else {
		a.registry, err = schema.Default()
	}
	return err
}

func (a *app) corpus(name string) (*schema.Corpus, error) {
	c, ok := a.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown corpus: %s (available: %v)", name, a.registry.Names())
	}
	return c, nil
}
