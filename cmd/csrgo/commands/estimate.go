package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/csrgo"
)

func newEstimateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the memory an import needs",
		Long: `Prints the memory range of an import, broken down by component,
without reading any input.

Example:
  csrgo estimate --nodes 1e6 --relationships 1e7 --property --inverse eager`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nodes, err := parseCount(a.v.GetString("nodes"))
			if err != nil {
				return fmt.Errorf("nodes: %w", err)
			}
			rels, err := parseCount(a.v.GetString("relationships"))
			if err != nil {
				return fmt.Errorf("relationships: %w", err)
			}
			budget, err := parseBytes("budget", a.v.GetString("budget"))
			if err != nil {
				return err
			}
			opts, err := topologyOptions(a.v)
			if err != nil {
				return err
			}

			tree := csrgo.Estimate(nodes, rels, opts...)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s nodes, %s relationships\n", humanize.Comma(int64(nodes)), humanize.Comma(int64(rels)))
			fmt.Fprint(out, tree.Render())
			if budget > 0 {
				verdict := "fits"
				if tree.Range.Max > uint64(budget) {
					verdict = "exceeds"
				}
				fmt.Fprintf(out, "budget %s: %s\n", humanize.IBytes(uint64(budget)), verdict)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.String("nodes", "0", "node count")
	fs.String("relationships", "0", "relationship count")
	fs.String("budget", "", "memory budget to check against, e.g. 8GiB")
	addTopologyFlags(fs)
	return cmd
}
