package adjacency

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hupe1980/csrgo/internal/conv"
	"github.com/hupe1980/csrgo/internal/paged"
	"github.com/hupe1980/csrgo/internal/varint"
	"github.com/hupe1980/csrgo/model"
)

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// Aggregation is the duplicate policy. It must be valid.
	Aggregation model.Aggregation
	// HasProperty enables the parallel property store.
	HasProperty bool
	// PageShift sets adjacency pages to 1<<PageShift bytes.
	// If 0, DefaultPageShift is used.
	PageShift uint
	// Acquirer is charged for offsets and pages. It may be nil.
	Acquirer MemoryAcquirer
}

// Builder accumulates one adjacency list (and optionally its properties)
// from concurrent Writers. Each node must be written by at most one Writer,
// at most once.
type Builder struct {
	cfg       BuilderConfig
	nodeCount int64

	offsets     *paged.Array[uint64]
	propOffsets *paged.Array[uint64]
	bytes       *Allocator[byte]
	values      *Allocator[uint64]

	offsetCharge     int64
	propOffsetCharge int64

	relationships atomic.Int64
	collapsed     atomic.Int64
	multi         atomic.Bool
	released      atomic.Bool
}

// NewBuilder creates a builder for nodeCount nodes. Offsets are charged to
// the acquirer up front; every node starts pointing at a shared empty run.
func NewBuilder(nodeCount int64, cfg BuilderConfig) (*Builder, error) {
	if !cfg.Aggregation.Valid() {
		return nil, ErrAggregationUnspecified
	}
	n, err := conv.Int64ToUint64(nodeCount)
	if err != nil {
		return nil, err
	}
	if cfg.PageShift == 0 {
		cfg.PageShift = DefaultPageShift
	}
	if !ValidPageShift(cfg.PageShift, cfg.HasProperty) {
		return nil, fmt.Errorf("adjacency: page shift %d out of range (property store %t)", cfg.PageShift, cfg.HasProperty)
	}

	bytes, err := NewAllocator[byte](cfg.PageShift, cfg.Acquirer)
	if err != nil {
		return nil, err
	}
	b := &Builder{cfg: cfg, nodeCount: nodeCount, bytes: bytes}

	charge := int64(paged.BytesFor[uint64](n))
	if err := acquire(cfg.Acquirer, charge); err != nil {
		return nil, err
	}
	b.offsetCharge = charge
	b.offsets = paged.New[uint64](n)

	// Address 0 is the shared all-zero run of nodes without edges.
	if _, _, err := bytes.claimPage(varint.HeaderLen); err != nil {
		b.Release()
		return nil, err
	}

	if cfg.HasProperty {
		values, err := NewAllocator[uint64](cfg.PageShift-PropertyShiftDelta, cfg.Acquirer)
		if err != nil {
			b.Release()
			return nil, err
		}
		b.values = values
		if err := acquire(cfg.Acquirer, charge); err != nil {
			b.Release()
			return nil, err
		}
		b.propOffsetCharge = charge
		b.propOffsets = paged.New[uint64](n)
	}
	return b, nil
}

func acquire(a MemoryAcquirer, bytes int64) error {
	if a == nil {
		return nil
	}
	return a.AcquireMemory(bytes)
}

func release(a MemoryAcquirer, bytes int64) {
	if a != nil && bytes > 0 {
		a.ReleaseMemory(bytes)
	}
}

// NodeCount returns the number of nodes.
func (b *Builder) NodeCount() int64 { return b.nodeCount }

// HasProperty reports whether writers must supply properties.
func (b *Builder) HasProperty() bool { return b.cfg.HasProperty }

// Collapsed returns the number of duplicates merged by flushed writers.
func (b *Builder) Collapsed() int64 { return b.collapsed.Load() }

// Relationships returns the number of edges stored by flushed writers.
func (b *Builder) Relationships() int64 { return b.relationships.Load() }

// Charged returns all bytes currently charged to the acquirer.
func (b *Builder) Charged() int64 {
	total := b.offsetCharge + b.propOffsetCharge + b.bytes.Charged()
	if b.values != nil {
		total += b.values.Charged()
	}
	return total
}

// NewWriter returns a writer for one worker.
func (b *Builder) NewWriter() *Writer {
	w := &Writer{b: b, bytes: b.bytes.NewLocal()}
	if b.values != nil {
		w.values = b.values.NewLocal()
	}
	return w
}

// Build finalizes the builder. It must be called after every writer has
// been flushed and no writer is in use.
func (b *Builder) Build() (*List, *Properties) {
	acq := b.cfg.Acquirer
	list := &List{
		offsets:       b.offsets,
		pages:         b.bytes.Pages(),
		pageShift:     b.cfg.PageShift,
		pageMask:      1<<b.cfg.PageShift - 1,
		nodeCount:     b.nodeCount,
		relationships: b.relationships.Load(),
		multiGraph:    b.multi.Load(),
	}
	offsetCharge := b.offsetCharge
	list.release = func() {
		b.bytes.Release()
		release(acq, offsetCharge)
	}
	if b.values == nil {
		return list, nil
	}
	props := &Properties{
		offsets:   b.propOffsets,
		pages:     b.values.Pages(),
		pageShift: b.values.PageShift(),
		pageMask:  1<<b.values.PageShift() - 1,
	}
	propCharge := b.propOffsetCharge
	props.release = func() {
		b.values.Release()
		release(acq, propCharge)
	}
	return list, props
}

// Release discards the builder and returns all charged memory. It must not
// be called after Build.
func (b *Builder) Release() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	b.bytes.Release()
	release(b.cfg.Acquirer, b.offsetCharge)
	if b.values != nil {
		b.values.Release()
	}
	release(b.cfg.Acquirer, b.propOffsetCharge)
}

// Writer encodes node runs for one worker.
type Writer struct {
	b      *Builder
	bytes  *LocalAllocator[byte]
	values *LocalAllocator[uint64]

	relationships int64
	collapsed     int64
	multi         bool
}

// Write sorts and aggregates targets (and props, when the builder has
// properties) in place, encodes the run and publishes it for node. Empty
// target lists leave the node on the shared empty run.
func (w *Writer) Write(node model.NodeID, targets []uint64, props []float64) error {
	if len(targets) == 0 {
		return nil
	}
	if w.b.cfg.HasProperty != (props != nil) {
		panic("adjacency: property presence does not match builder")
	}

	targets, props, collapsed, err := Aggregate(targets, props, w.b.cfg.Aggregation)
	if err != nil {
		var de *DuplicateError
		if errors.As(err, &de) {
			de.Source = node
		}
		return err
	}

	n, err := varint.EncodedLen(targets)
	if err != nil {
		return err
	}
	addr, buf, err := w.bytes.Reserve(n)
	if err != nil {
		return err
	}
	varint.Encode(buf, targets)
	w.b.offsets.Set(uint64(node), addr)

	if props != nil {
		paddr, pbuf, err := w.values.Reserve(len(props))
		if err != nil {
			return err
		}
		for i, p := range props {
			pbuf[i] = math.Float64bits(p)
		}
		w.b.propOffsets.Set(uint64(node), paddr)
	}

	if w.b.cfg.Aggregation == model.Keep && !w.multi {
		for i := 1; i < len(targets); i++ {
			if targets[i] == targets[i-1] {
				w.multi = true
				break
			}
		}
	}
	w.relationships += int64(len(targets))
	w.collapsed += int64(collapsed)
	return nil
}

// Flush publishes the writer's counters to the builder.
func (w *Writer) Flush() {
	w.b.relationships.Add(w.relationships)
	w.b.collapsed.Add(w.collapsed)
	if w.multi {
		w.b.multi.Store(true)
	}
	w.relationships, w.collapsed, w.multi = 0, 0, false
}
