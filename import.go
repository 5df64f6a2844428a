package csrgo

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/csrgo/internal/conv"
	"github.com/hupe1980/csrgo/internal/estimate"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/internal/importer"
	"github.com/hupe1980/csrgo/internal/resource"
	"github.com/hupe1980/csrgo/model"
)

const tracerName = "github.com/hupe1980/csrgo"

// nodeCheckInterval is how many nodes are read between context checks.
const nodeCheckInterval = 1 << 14

// ImportSummary describes a finished import.
type ImportSummary struct {
	Nodes     int64
	EdgesRead uint64
	// Relationships is the number of stored relationships over all types.
	Relationships uint64
	// Discarded counts edges dropped in lenient mode.
	Discarded uint64
	// UnknownNodeIDs counts distinct original ids referenced by edges but
	// missing from the node set.
	UnknownNodeIDs       uint64
	DuplicatesAggregated uint64
	PerType              map[RelationshipType]uint64
	Duration             time.Duration
	Shards               int
	// Estimate is the memory range predicted before the import.
	Estimate estimate.Range
}

// Import builds a graph from a node universe and an edge stream.
//
// nodes is read to completion before the first edge. It may be nil when
// WithDenseIDs is given. The import either yields a complete graph or
// fails as a unit; no partial graph is ever returned and all memory charged
// to the resource controller is released on failure.
func Import(ctx context.Context, nodes NodeSource, edges EdgeSource, opts ...Option) (g *Graph, err error) {
	o := applyOptions(opts)
	tracer := o.tracerProvider.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, "csrgo.Import", trace.WithAttributes(
		attribute.Int("csrgo.concurrency", o.concurrency),
		attribute.Bool("csrgo.strict", o.strict),
	))
	defer span.End()

	start := time.Now()
	summary := ImportSummary{Shards: o.concurrency}
	defer func() {
		summary.Duration = time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		o.metricsCollector.RecordImport(summary, err)
		o.logger.LogImportFinished(ctx, summary, err)
	}()

	cfg := o.importerConfig(tracer)
	if err := cfg.Validate(); err != nil {
		return nil, translateError(err)
	}
	if nodes == nil && o.denseIDs <= 0 {
		return nil, &ConfigError{Field: "nodes", Reason: "a node source or WithDenseIDs is required"}
	}

	rc := o.rc
	if rc == nil && o.memoryBudget > 0 {
		rc = resource.NewController(resource.Config{MemoryLimitBytes: o.memoryBudget})
	}
	cfg.Acquirer = nil
	if rc != nil {
		cfg.Acquirer = rc
	}

	if err := rc.AcquireImport(ctx); err != nil {
		return nil, translateError(err)
	}
	defer rc.ReleaseImport()

	// Reject on the hint before reading anything.
	if hint := o.expectedNodesHint(); hint > 0 {
		if err := o.admit(ctx, rc, hint); err != nil {
			return nil, err
		}
	}

	ids, charge, err := o.buildIDMap(ctx, tracer, nodes, rc)
	if err != nil {
		return nil, translateError(err)
	}
	summary.Nodes = ids.NodeCount()

	// The node count is exact now; labels are known too.
	est, err := o.admitGraph(ctx, rc, ids, charge)
	if err != nil {
		rc.ReleaseMemory(charge)
		return nil, err
	}
	summary.Estimate = est

	o.logger.LogImportStarted(ctx, nonNegative(ids.NodeCount()), o.expectedRels, o.concurrency)

	res, err := importer.Run(ctx, ids, edges, cfg)
	if err != nil {
		rc.ReleaseMemory(charge)
		return nil, translateError(err)
	}

	fillSummary(&summary, res.Summary)
	g = newGraph(&graphStore{
		ids:        ids,
		result:     res,
		rc:         rc,
		idCharge:   charge,
		logger:     o.logger,
		metrics:    o.metricsCollector,
		summary:    summary,
		transposer: o.transposeConfig(tracer, rc),
	})
	span.SetAttributes(
		attribute.Int64("csrgo.nodes", summary.Nodes),
		attribute.Int64("csrgo.relationships", int64(min(summary.Relationships, math.MaxInt64))),
	)
	return g, nil
}

// nonNegative converts a count to uint64, mapping negative values to 0.
func nonNegative(n int64) uint64 {
	u, err := conv.Int64ToUint64(n)
	if err != nil {
		return 0
	}
	return u
}

func (o *options) expectedNodesHint() uint64 {
	if o.denseIDs > 0 {
		return nonNegative(o.denseIDs)
	}
	return o.expectedNodes
}

// dimensions describes the import for estimation.
func (o *options) dimensions(nodeCount uint64, labels int) estimate.Dimensions {
	types := o.typeConfigs()
	d := estimate.Dimensions{
		NodeCount:         nodeCount,
		RelationshipCount: o.expectedRels,
		Concurrency:       o.concurrency,
		Types:             len(types),
		Labels:            labels,
		BatchSize:         o.batchSize,
		PageShift:         o.pageShift,
	}
	for _, tc := range types {
		d.HasProperty = d.HasProperty || tc.HasProperty
		d.Undirected = d.Undirected || tc.Orientation == model.Undirected
		d.InverseIndex = d.InverseIndex || tc.Inverse == InverseEager
	}
	return d
}

// admit rejects the import when the estimate's upper bound does not fit
// the budget.
func (o *options) admit(ctx context.Context, rc *resource.Controller, nodeCount uint64) error {
	_, err := o.admitDimensions(ctx, rc, o.dimensions(nodeCount, 0), 0)
	return err
}

// admitGraph admits the rest of the import once the id map, which holds
// charged bytes, is built.
func (o *options) admitGraph(ctx context.Context, rc *resource.Controller, ids *idmap.Map, charged int64) (estimate.Range, error) {
	d := o.dimensions(nonNegative(ids.NodeCount()), len(ids.AvailableLabels()))
	return o.admitDimensions(ctx, rc, d, charged)
}

func (o *options) admitDimensions(ctx context.Context, rc *resource.Controller, d estimate.Dimensions, charged int64) (estimate.Range, error) {
	r := estimate.Estimate(d).Range
	required := max(int64(min(r.Max, math.MaxInt64))-charged, 0)
	if err := rc.Admit(required); err != nil {
		o.logger.LogImportRejected(ctx, required, rc.MemoryLimit())
		o.metricsCollector.RecordRejected(required, rc.MemoryLimit())
		return r, translateError(err)
	}
	return r, nil
}

func (o *options) buildIDMap(ctx context.Context, tracer trace.Tracer, nodes NodeSource, rc *resource.Controller) (*idmap.Map, int64, error) {
	_, span := tracer.Start(ctx, "csrgo.BuildIDMap")
	defer span.End()

	if o.denseIDs > 0 {
		return idmap.FromRange(o.denseIDs), 0, nil
	}

	b := idmap.NewBuilder(o.expectedNodes)
	for i := 0; ; i++ {
		if i%nodeCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		n, err := nodes.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if _, err := b.Add(n.ID, n.Labels...); err != nil {
			return nil, 0, err
		}
	}
	ids := b.Build()

	charge := int64(min(ids.MemoryUsage(), math.MaxInt64))
	if err := rc.AcquireMemory(charge); err != nil {
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int64("csrgo.nodes", ids.NodeCount()))
	return ids, charge, nil
}

func (o *options) transposeConfig(tracer trace.Tracer, rc *resource.Controller) importer.TransposeConfig {
	tc := importer.TransposeConfig{
		Concurrency: o.concurrency,
		BatchSize:   o.batchSize,
		PageShift:   o.pageShift,
		Logger:      o.logger.Logger,
		Tracer:      tracer,
	}
	if rc != nil {
		tc.Acquirer = rc
	}
	return tc
}

func fillSummary(s *ImportSummary, in importer.Summary) {
	s.EdgesRead = in.EdgesRead
	s.Discarded = in.Discarded
	s.UnknownNodeIDs = in.UnknownNodeIDs
	s.DuplicatesAggregated = in.DuplicatesAggregated
	s.PerType = in.PerType
	s.Shards = in.Shards
	for _, n := range in.PerType {
		s.Relationships += n
	}
}
