package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/internal/conv"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/internal/pool"
	"github.com/hupe1980/csrgo/model"
)

// record is one projected edge routed to a band owner.
type record struct {
	node   int64
	target uint64
	prop   float64
	proj   uint16
}

type projectMode uint8

const (
	forwardMode projectMode = iota // source -> target
	reverseMode                    // target -> source
	bothMode                       // both, self-loops once
)

// projection is one adjacency list under construction.
type projection struct {
	route   *typeRoute
	mode    projectMode
	builder *adjacency.Builder
}

type typeRoute struct {
	name    model.RelationshipType
	cfg     TypeConfig
	forward uint16
	inverse int // projection index, or -1
}

type pipeline struct {
	cfg    Config
	ids    *idmap.Map
	logger *slog.Logger
	tracer trace.Tracer

	srcMu   sync.Mutex
	src     EdgeSource
	srcDone bool

	bands []Band
	width int64
	inbox []chan *[]record

	projs    []*projection
	routes   map[model.RelationshipType]*typeRoute
	wildcard *typeRoute

	batches *pool.Slice[record]
	edges   *pool.Slice[model.Edge]

	read      atomic.Uint64
	imported  atomic.Uint64
	discarded atomic.Uint64

	unknownMu sync.Mutex
	unknown   *roaring64.Bitmap

	progress rate.Sometimes
}

// Run imports the edges of src into one adjacency list per relationship
// type (two with an eager inverse index). ids must hold the full node
// universe.
//
// Edges are pulled by Concurrency scanners, translated to internal ids and
// routed by source to the band owning it. Each band owner buffers its
// records, groups them by node with a counting sort and writes one run per
// node. The import fails as a unit: on any error, including cancellation,
// every partially built list is released.
func Run(ctx context.Context, ids *idmap.Map, src EdgeSource, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("csrgo/importer")
	}
	ctx, span := tracer.Start(ctx, "importer.Run", trace.WithAttributes(
		attribute.Int64("csrgo.node_count", ids.NodeCount()),
		attribute.Int("csrgo.concurrency", cfg.Concurrency),
		attribute.Int("csrgo.relationship_types", len(cfg.Types)),
	))
	defer span.End()

	start := time.Now()
	p, err := newPipeline(ids, src, cfg, tracer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := p.run(ctx); err != nil {
		p.release()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ErrCanceled, ctxErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := p.result(time.Since(start))
	span.SetAttributes(
		attribute.Int64("csrgo.edges_read", int64(res.Summary.EdgesRead)),
		attribute.Int64("csrgo.edges_imported", int64(res.Summary.EdgesImported)),
		attribute.Int64("csrgo.edges_discarded", int64(res.Summary.Discarded)),
	)
	return res, nil
}

func newPipeline(ids *idmap.Map, src EdgeSource, cfg Config, tracer trace.Tracer) (*pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	nodeCount := ids.NodeCount()
	bands := Partition(nodeCount, cfg.Concurrency)
	if err := VerifyPartition(bands, nodeCount); err != nil {
		panic(err)
	}

	p := &pipeline{
		cfg:      cfg,
		ids:      ids,
		logger:   logger,
		tracer:   tracer,
		src:      src,
		bands:    bands,
		width:    bandWidth(nodeCount, cfg.Concurrency),
		inbox:    make([]chan *[]record, len(bands)),
		routes:   make(map[model.RelationshipType]*typeRoute, len(cfg.Types)),
		batches:  pool.NewSlice[record](cfg.BatchSize, 2*cfg.BatchSize),
		edges:    pool.NewSlice[model.Edge](cfg.BatchSize, cfg.BatchSize),
		unknown:  roaring64.New(),
		progress: rate.Sometimes{Interval: cfg.progressInterval()},
	}
	for i := range p.inbox {
		p.inbox[i] = make(chan *[]record, cfg.Concurrency)
	}

	for _, name := range cfg.typeNames() {
		tc := cfg.Types[name]
		rt := &typeRoute{name: name, cfg: tc, inverse: -1}

		mode := forwardMode
		switch tc.Orientation {
		case model.Reverse:
			mode = reverseMode
		case model.Undirected:
			mode = bothMode
		}
		fwd, err := p.addProjection(rt, mode, nodeCount)
		if err != nil {
			p.release()
			return nil, err
		}
		rt.forward = fwd

		if tc.Inverse == InverseEager && mode != bothMode {
			inv := reverseMode
			if mode == reverseMode {
				inv = forwardMode
			}
			idx, err := p.addProjection(rt, inv, nodeCount)
			if err != nil {
				p.release()
				return nil, err
			}
			rt.inverse = int(idx)
		}

		p.routes[name] = rt
		if name == model.AllRelationships {
			p.wildcard = rt
		}
	}
	return p, nil
}

func (p *pipeline) addProjection(rt *typeRoute, mode projectMode, nodeCount int64) (uint16, error) {
	b, err := adjacency.NewBuilder(nodeCount, adjacency.BuilderConfig{
		Aggregation: rt.cfg.Aggregation,
		HasProperty: rt.cfg.HasProperty,
		PageShift:   p.cfg.PageShift,
		Acquirer:    p.cfg.Acquirer,
	})
	if err != nil {
		return 0, err
	}
	p.projs = append(p.projs, &projection{route: rt, mode: mode, builder: b})
	return uint16(len(p.projs) - 1), nil
}

func (p *pipeline) release() {
	for _, proj := range p.projs {
		proj.builder.Release()
	}
}

func (p *pipeline) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var scanners sync.WaitGroup
	for range p.cfg.Concurrency {
		scanners.Add(1)
		s := p.newScanner()
		g.Go(func() error {
			defer scanners.Done()
			return s.run(gctx)
		})
	}
	g.Go(func() error {
		scanners.Wait()
		for _, ch := range p.inbox {
			close(ch)
		}
		return nil
	})

	for _, band := range p.bands {
		o := &bandOwner{p: p, band: band, acc: make([][]record, len(p.projs))}
		g.Go(func() error { return o.run(gctx) })
	}
	return g.Wait()
}

// pull serializes reads from the source. After the source reports io.EOF
// it is never called again.
func (p *pipeline) pull(dst []model.Edge) (int, error) {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	if p.srcDone {
		return 0, io.EOF
	}
	n, err := p.src.NextBatch(dst)
	if err != nil {
		p.srcDone = true
	}
	return n, err
}

func (p *pipeline) routeFor(t model.RelationshipType) *typeRoute {
	if t == "" {
		t = model.AllRelationships
	}
	if rt, ok := p.routes[t]; ok {
		return rt
	}
	return p.wildcard
}

func (p *pipeline) reportProgress() {
	p.progress.Do(func() {
		read := p.read.Load()
		p.logger.Info("import progress",
			slog.Uint64("edges_read", read),
			slog.Uint64("edges_imported", p.imported.Load()),
			slog.Uint64("edges_discarded", p.discarded.Load()))
		if p.cfg.Progress != nil {
			p.cfg.Progress(read)
		}
	})
}

func (p *pipeline) result(elapsed time.Duration) *Result {
	res := &Result{
		Topologies: make(map[model.RelationshipType]*Topology, len(p.routes)),
		Unknown:    p.unknown,
		Summary: Summary{
			EdgesRead:      p.read.Load(),
			EdgesImported:  p.imported.Load(),
			Discarded:      p.discarded.Load(),
			UnknownNodeIDs: p.unknown.GetCardinality(),
			PerType:        make(map[model.RelationshipType]uint64, len(p.routes)),
			Duration:       elapsed,
			Shards:         len(p.bands),
		},
	}

	for name, rt := range p.routes {
		fwd := p.projs[rt.forward].builder
		t := &Topology{Type: name, Config: rt.cfg, Duplicates: fwd.Collapsed()}
		t.Forward, t.ForwardProperties = fwd.Build()
		switch {
		case rt.inverse >= 0:
			t.Inverse, t.InverseProperties = p.projs[rt.inverse].builder.Build()
		case rt.cfg.Orientation == model.Undirected && rt.cfg.Inverse != InverseNone:
			t.Inverse, t.InverseProperties = t.Forward, t.ForwardProperties
		}
		collapsed, _ := conv.Int64ToUint64(t.Duplicates)
		res.Summary.DuplicatesAggregated += collapsed
		stored, _ := conv.Int64ToUint64(t.Forward.RelationshipCount())
		res.Summary.PerType[name] = stored
		res.Topologies[name] = t
	}
	return res
}

// scanner pulls, translates and routes edges. Counters are local and
// published once per batch.
type scanner struct {
	p       *pipeline
	out     []*[]record
	unknown *roaring64.Bitmap

	imported  uint64
	discarded uint64
}

func (p *pipeline) newScanner() *scanner {
	return &scanner{p: p, out: make([]*[]record, len(p.bands)), unknown: roaring64.New()}
}

func (s *scanner) run(ctx context.Context) error {
	p := s.p
	bufp := p.edges.Get()
	defer p.edges.Put(bufp)
	buf := (*bufp)[:cap(*bufp)]

	defer s.mergeUnknown()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.pull(buf)
		for i := range buf[:n] {
			if rerr := s.route(ctx, &buf[i]); rerr != nil {
				return rerr
			}
		}
		p.read.Add(uint64(n))
		p.imported.Add(s.imported)
		p.discarded.Add(s.discarded)
		s.imported, s.discarded = 0, 0
		p.reportProgress()

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("importer: read edges: %w", err)
		}
	}

	for band, b := range s.out {
		if b == nil {
			continue
		}
		s.out[band] = nil
		if err := s.send(ctx, band, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) mergeUnknown() {
	if s.unknown.IsEmpty() {
		return
	}
	s.p.unknownMu.Lock()
	s.p.unknown.Or(s.unknown)
	s.p.unknownMu.Unlock()
}

func (s *scanner) route(ctx context.Context, e *model.Edge) error {
	p := s.p
	rt := p.routeFor(e.Type)
	if rt == nil {
		if p.cfg.Strict {
			return &UnknownTypeError{Type: e.Type}
		}
		s.discarded++
		return nil
	}

	source := p.ids.ToInternal(e.Source)
	target := p.ids.ToInternal(e.Target)
	if source == model.NotFound || target == model.NotFound {
		if p.cfg.Strict {
			if source == model.NotFound {
				return &UnknownNodeError{OriginalID: e.Source, Source: true}
			}
			return &UnknownNodeError{OriginalID: e.Target}
		}
		if source == model.NotFound {
			s.unknown.Add(e.Source)
		}
		if target == model.NotFound {
			s.unknown.Add(e.Target)
		}
		s.discarded++
		return nil
	}

	prop := e.Property
	if math.IsNaN(prop) {
		prop = rt.cfg.DefaultValue
	}
	if err := s.project(ctx, rt.forward, source, target, prop); err != nil {
		return err
	}
	if rt.inverse >= 0 {
		if err := s.project(ctx, uint16(rt.inverse), source, target, prop); err != nil {
			return err
		}
	}
	s.imported++
	return nil
}

func (s *scanner) project(ctx context.Context, proj uint16, source, target model.NodeID, prop float64) error {
	switch s.p.projs[proj].mode {
	case reverseMode:
		return s.emit(ctx, proj, target, source, prop)
	case bothMode:
		if err := s.emit(ctx, proj, source, target, prop); err != nil {
			return err
		}
		if source == target {
			return nil
		}
		return s.emit(ctx, proj, target, source, prop)
	default:
		return s.emit(ctx, proj, source, target, prop)
	}
}

func (s *scanner) emit(ctx context.Context, proj uint16, node, target model.NodeID, prop float64) error {
	band := int(node / s.p.width)
	b := s.out[band]
	if b == nil {
		b = s.p.batches.Get()
		s.out[band] = b
	}
	*b = append(*b, record{node: node, target: uint64(target), prop: prop, proj: proj})
	if len(*b) < s.p.cfg.BatchSize {
		return nil
	}
	s.out[band] = nil
	return s.send(ctx, band, b)
}

func (s *scanner) send(ctx context.Context, band int, b *[]record) error {
	select {
	case s.p.inbox[band] <- b:
		return nil
	case <-ctx.Done():
		s.p.batches.Put(b)
		return ctx.Err()
	}
}

// bandOwner accumulates the records of one band and writes its runs once
// every scanner is done.
type bandOwner struct {
	p    *pipeline
	band Band
	acc  [][]record // per projection
}

func (o *bandOwner) run(ctx context.Context) error {
	inbox := o.p.inbox[o.band.Index]
	for {
		select {
		case b, ok := <-inbox:
			if !ok {
				return o.flush(ctx)
			}
			for _, r := range *b {
				if !o.band.Contains(r.node) {
					panic(fmt.Sprintf("importer: node %d routed to band %d [%d, %d)", r.node, o.band.Index, o.band.Start, o.band.End))
				}
				o.acc[r.proj] = append(o.acc[r.proj], r)
			}
			o.p.batches.Put(b)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *bandOwner) flush(ctx context.Context) error {
	ctx, span := o.p.tracer.Start(ctx, "importer.flushBand", trace.WithAttributes(
		attribute.Int("csrgo.band", o.band.Index),
		attribute.Int64("csrgo.band_nodes", o.band.Len()),
	))
	defer span.End()

	counts := make([]int, o.band.Len()+1)
	var records int
	for i, recs := range o.acc {
		proj := o.p.projs[i]
		w := proj.builder.NewWriter()
		err := o.flushProjection(ctx, proj, w, recs, counts)
		w.Flush()
		records += len(recs)
		o.acc[i] = nil
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	o.p.logger.Debug("band flushed",
		slog.Int("band", o.band.Index),
		slog.Int64("nodes", o.band.Len()),
		slog.Int("records", records))
	return nil
}

// flushProjection groups recs by node with a stable counting sort and
// writes one run per node. counts is scratch space of band length + 1.
func (o *bandOwner) flushProjection(ctx context.Context, proj *projection, w *adjacency.Writer, recs []record, counts []int) error {
	if len(recs) == 0 {
		return nil
	}
	start := o.band.Start

	clear(counts)
	for _, r := range recs {
		counts[r.node-start+1]++
	}
	for i := 1; i < len(counts); i++ {
		counts[i] += counts[i-1]
	}

	targets := make([]uint64, len(recs))
	var props []float64
	if proj.route.cfg.HasProperty {
		props = make([]float64, len(recs))
	}
	fill := slices.Clone(counts[:len(counts)-1])
	for _, r := range recs {
		local := r.node - start
		i := fill[local]
		fill[local]++
		targets[i] = r.target
		if props != nil {
			props[i] = r.prop
		}
	}

	for local := range len(counts) - 1 {
		if local%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		lo, hi := counts[local], counts[local+1]
		if lo == hi {
			continue
		}
		var pv []float64
		if props != nil {
			pv = props[lo:hi]
		}
		if err := w.Write(start+int64(local), targets[lo:hi], pv); err != nil {
			return o.p.translateWriteError(proj, err)
		}
	}
	return nil
}

func (p *pipeline) translateWriteError(proj *projection, err error) error {
	var de *adjacency.DuplicateError
	if errors.As(err, &de) {
		return &DuplicateError{
			Type:   proj.route.name,
			Source: p.ids.ToOriginal(de.Source),
			Target: p.ids.ToOriginal(de.Target),
		}
	}
	return err
}
