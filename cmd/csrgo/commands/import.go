package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/edgeio"
	"github.com/hupe1980/csrgo/model"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import EDGES",
		Short: "Import an edge list and print the graph schema",
		Long: `Reads an edge list from a local path, s3://bucket/key or
minio://bucket/key. Inputs may be gzip, zstd, lz4 or snappy compressed;
the codec is detected from the stream.

Each line is "source target [property] [type]", separated by blanks,
tabs or commas. Node files hold "id [label...]" per line.

Example:
  csrgo import edges.tsv.zst --nodes-file nodes.tsv --aggregation sum --property
  csrgo import s3://graphs/web.txt.gz --dense 875713 --concurrency 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	fs := cmd.Flags()
	fs.String("nodes-file", "", "node file; required unless --dense is set")
	fs.Int64("dense", 0, "original ids are exactly 0..n-1; no node file is read")
	fs.Bool("header", false, "skip the first line of every input")
	fs.String("default-type", "", "type of edge lines without a type column")
	fs.Bool("lenient", false, "drop edges with unknown endpoints or types instead of failing")
	fs.Int("batch-size", 0, "edges per batch (0 keeps the default)")
	fs.String("memory-budget", "", "fail the import up front when it needs more, e.g. 8GiB")
	fs.String("io-limit", "", "input throughput limit per second, e.g. 100MiB")
	fs.String("expected-nodes", "0", "node count hint for early admission")
	fs.String("expected-relationships", "0", "relationship count hint for early admission")
	fs.Duration("progress", 10*time.Second, "progress logging interval")
	addTopologyFlags(fs)
	addStoreFlags(fs)
	return cmd
}

func (a *app) runImport(ctx context.Context, out io.Writer, input string) error {
	v := a.v
	opts, err := topologyOptions(v)
	if err != nil {
		return err
	}
	budget, err := parseBytes("memory-budget", v.GetString("memory-budget"))
	if err != nil {
		return err
	}
	ioLimit, err := parseBytes("io-limit", v.GetString("io-limit"))
	if err != nil {
		return err
	}
	expectedNodes, err := parseCount(v.GetString("expected-nodes"))
	if err != nil {
		return fmt.Errorf("expected-nodes: %w", err)
	}
	expectedRels, err := parseCount(v.GetString("expected-relationships"))
	if err != nil {
		return fmt.Errorf("expected-relationships: %w", err)
	}

	rc := csrgo.NewResourceController(csrgo.ResourceConfig{
		MemoryLimitBytes:   budget,
		IOLimitBytesPerSec: ioLimit,
	})
	opts = append(opts,
		csrgo.WithResourceController(rc),
		csrgo.WithLogger(a.logger),
		csrgo.WithTracerProvider(a.tracer),
		csrgo.WithExpectedCounts(expectedNodes, expectedRels),
		csrgo.WithProgress(v.GetDuration("progress"), nil),
	)
	if n := v.GetInt("batch-size"); n > 0 {
		opts = append(opts, csrgo.WithBatchSize(n))
	}
	if v.GetBool("lenient") {
		opts = append(opts, csrgo.WithLenient())
	}

	var readerOpts []edgeio.ReaderOption
	if v.GetBool("header") {
		readerOpts = append(readerOpts, edgeio.WithHeader())
	}

	var nodes csrgo.NodeSource
	if dense := v.GetInt64("dense"); dense > 0 {
		opts = append(opts, csrgo.WithDenseIDs(dense))
	} else {
		path := v.GetString("nodes-file")
		if path == "" {
			return errors.New("either --nodes-file or --dense is required")
		}
		ns, err := a.openInput(ctx, path, rc)
		if err != nil {
			return fmt.Errorf("open nodes: %w", err)
		}
		defer ns.Close()
		nodes = edgeio.NewNodeReader(ns, readerOpts...)
	}

	es, err := a.openInput(ctx, input, rc)
	if err != nil {
		return fmt.Errorf("open edges: %w", err)
	}
	defer es.Close()
	if t := v.GetString("default-type"); t != "" {
		readerOpts = append(readerOpts, edgeio.WithDefaultType(model.RelationshipType(t)))
	}
	edges := edgeio.NewEdgeReader(es, readerOpts...)

	g, err := csrgo.Import(ctx, nodes, edges, opts...)
	if err != nil {
		return err
	}
	defer g.Close()

	printSummary(out, input, es, g)
	return nil
}

func (a *app) openInput(ctx context.Context, raw string, rc *csrgo.ResourceController) (*edgeio.Stream, error) {
	loc, err := parseLocation(raw)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, a.v, loc)
	if err != nil {
		return nil, err
	}
	return edgeio.Open(ctx, store, loc.name, rc)
}

func printSummary(out io.Writer, input string, es *edgeio.Stream, g *csrgo.Graph) {
	s := g.Summary()
	fmt.Fprintf(out, "input: %s (%s, %s)\n", input, humanize.IBytes(uint64(max(es.Size, 0))), es.Codec)
	fmt.Fprint(out, g.Schema().String())

	rate := 0.0
	if secs := s.Duration.Seconds(); secs > 0 {
		rate = float64(s.EdgesRead) / secs
	}
	fmt.Fprintf(out, "edges read: %s in %s (%s/s)\n",
		humanize.Comma(int64(s.EdgesRead)), s.Duration.Round(time.Millisecond), humanize.SIWithDigits(rate, 1, ""))
	if s.Discarded > 0 {
		fmt.Fprintf(out, "discarded: %s (%s unknown node ids)\n",
			humanize.Comma(int64(s.Discarded)), humanize.Comma(int64(s.UnknownNodeIDs)))
	}
	if s.DuplicatesAggregated > 0 {
		fmt.Fprintf(out, "duplicates aggregated: %s\n", humanize.Comma(int64(s.DuplicatesAggregated)))
	}
	fmt.Fprintf(out, "memory: %s (estimated %s)\n", humanize.IBytes(g.MemoryUsage()), s.Estimate)
}
