package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/csrgo/edgeio"
	"github.com/hupe1980/csrgo/model"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate OUT",
		Short: "Write a random edge list over dense ids",
		Long: `Writes uniformly random edges between nodes 0..n-1. The output is
compressed with --codec, or with the codec implied by the file extension
(.gz, .zst, .lz4, .sz).

Example:
  csrgo generate edges.txt.zst --nodes 1e5 --relationships 1e6 --property
  csrgo import edges.txt.zst --dense 100000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(a.v, cmd.OutOrStdout(), args[0])
		},
	}

	fs := cmd.Flags()
	fs.String("nodes", "1000", "node count")
	fs.String("relationships", "10000", "edge count")
	fs.Uint64("seed", 1, "random seed")
	fs.String("codec", "", "output codec (none, gzip, zstd, lz4, snappy); default from extension")
	fs.Bool("property", false, "write a random property per edge")
	fs.StringSlice("edge-types", nil, "tag edges with one of these types at random")
	fs.String("nodes-out", "", "also write a node file here")
	fs.StringSlice("labels", nil, "labels assigned at random in the node file")
	return cmd
}

func runGenerate(v *viper.Viper, out io.Writer, path string) error {
	nodes, err := parseCount(v.GetString("nodes"))
	if err != nil {
		return fmt.Errorf("nodes: %w", err)
	}
	if nodes == 0 {
		return errors.New("nodes: must be positive")
	}
	rels, err := parseCount(v.GetString("relationships"))
	if err != nil {
		return fmt.Errorf("relationships: %w", err)
	}
	codec := edgeio.CodecFromName(path)
	if name := v.GetString("codec"); name != "" {
		if codec, err = edgeio.ParseCodec(name); err != nil {
			return err
		}
	}

	seed := v.GetUint64("seed")
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	types := v.GetStringSlice("edge-types")
	property := v.GetBool("property")
	written, err := writeCompressed(path, codec, func(w io.Writer) (uint64, error) {
		ew := edgeio.NewEdgeWriter(w)
		for range rels {
			e := model.NewEdge(rng.Uint64N(nodes), rng.Uint64N(nodes))
			if property {
				e = e.WithProperty(rng.Float64())
			}
			if len(types) > 0 {
				e = e.WithType(model.RelationshipType(types[rng.IntN(len(types))]))
			}
			if err := ew.Write(e); err != nil {
				return ew.Written(), err
			}
		}
		return ew.Written(), ew.Flush()
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s edges to %s (%s)\n", humanize.Comma(int64(written)), path, codec)

	nodesOut := v.GetString("nodes-out")
	if nodesOut == "" {
		return nil
	}
	labels := v.GetStringSlice("labels")
	if _, err := writeCompressed(nodesOut, edgeio.CodecFromName(nodesOut), func(w io.Writer) (uint64, error) {
		bw := bufio.NewWriter(w)
		for id := range nodes {
			n := model.NewNode(id)
			for _, l := range labels {
				if rng.IntN(2) == 0 {
					n.Labels = append(n.Labels, model.Label(l))
				}
			}
			if err := edgeio.WriteNode(bw, n); err != nil {
				return id, err
			}
		}
		return nodes, bw.Flush()
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s nodes to %s\n", humanize.Comma(int64(nodes)), nodesOut)
	return nil
}

// writeCompressed creates path and runs write over a compressing writer.
func writeCompressed(path string, codec edgeio.Codec, write func(io.Writer) (uint64, error)) (n uint64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	cw, err := edgeio.NewCompressWriter(f, codec)
	if err != nil {
		return 0, err
	}
	n, err = write(cw)
	return n, errors.Join(err, cw.Close())
}
