package main

import (
	"bufio"
	"fmt"

	"github.com/miku/jurikit/convert"
	"github.com/spf13/cobra"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <corpus> <file> ...",
		Short: "Parse local decision files and write JSON lines to stdout",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.corpus(args[0])
			if err != nil {
				return err
			}
			var (
				p      = convert.NewParser(c)
				bw     = bufio.NewWriter(cmd.OutOrStdout())
				b      []byte
				failed int
			)
			defer bw.Flush()
			for _, filename := range args[1:] {
				rec, err := p.ParseFile(filename)
				if err != nil {
					cmd.PrintErrln(err)
					failed++
					continue
				}
				if b, err = rec.AppendJSON(b[:0]); err != nil {
					return err
				}
				b = append(b, '\n')
				if _, err := bw.Write(b); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args)-1)
			}
			return nil
		},
	}
}
