// Package estimate computes memory bounds of an import from its dimensions
// alone. The bounds follow the adjacency encoding: the lower bound assumes
// one-byte deltas, the upper bound maximal varints plus partially filled
// pages and full import scratch.
package estimate

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/internal/paged"
	"github.com/hupe1980/csrgo/internal/varint"
)

const (
	// RecordBytes is the size of one routed import record.
	RecordBytes = 32
	// EdgeBytes is the size of one raw edge in a scanner buffer.
	EdgeBytes = 40
	// PropertyBytes is the size of one stored property value.
	PropertyBytes = 8

	// DefaultBatchSize matches the importer default.
	DefaultBatchSize = 10_000
)

// Range is a closed byte range.
type Range struct {
	Min uint64
	Max uint64
}

// Fixed returns the range [v, v].
func Fixed(v uint64) Range { return Range{Min: v, Max: v} }

// Add returns the element-wise sum of r and o.
func (r Range) Add(o Range) Range { return Range{Min: r.Min + o.Min, Max: r.Max + o.Max} }

// Times scales r by n.
func (r Range) Times(n uint64) Range { return Range{Min: r.Min * n, Max: r.Max * n} }

// Contains reports whether v lies in r.
func (r Range) Contains(v uint64) bool { return v >= r.Min && v <= r.Max }

// String renders r with binary units.
func (r Range) String() string {
	if r.Min == r.Max {
		return humanize.IBytes(r.Min)
	}
	return fmt.Sprintf("[%s ... %s]", humanize.IBytes(r.Min), humanize.IBytes(r.Max))
}

// Tree is a named estimate with optional components. The range of an
// inner node is the sum of its components.
type Tree struct {
	Description string
	Range       Range
	Components  []Tree
}

// Leaf returns a tree without components.
func Leaf(description string, r Range) Tree {
	return Tree{Description: description, Range: r}
}

// Group returns a tree whose range is the sum of components.
func Group(description string, components ...Tree) Tree {
	t := Tree{Description: description, Components: components}
	for _, c := range components {
		t.Range = t.Range.Add(c.Range)
	}
	return t
}

// Find returns the first component (depth first) with the given
// description.
func (t Tree) Find(description string) (Tree, bool) {
	if t.Description == description {
		return t, true
	}
	for _, c := range t.Components {
		if found, ok := c.Find(description); ok {
			return found, true
		}
	}
	return Tree{}, false
}

// Render returns an indented, one-line-per-component rendering.
func (t Tree) Render() string {
	var sb strings.Builder
	t.render(&sb, 0)
	return sb.String()
}

func (t Tree) render(sb *strings.Builder, depth int) {
	fmt.Fprintf(sb, "%s%s: %s\n", strings.Repeat("    ", depth), t.Description, t.Range)
	for _, c := range t.Components {
		c.render(sb, depth+1)
	}
}

// Dimensions describes an import.
type Dimensions struct {
	NodeCount uint64
	// RelationshipCount is the number of raw edges over all types.
	RelationshipCount uint64
	Concurrency       int
	// Types is the number of relationship types. If 0, one.
	Types       int
	Labels      int
	HasProperty bool
	// Undirected stores every edge in both directions.
	Undirected bool
	// InverseIndex adds one inverse list per type.
	InverseIndex bool
	// BatchSize defaults to the importer default.
	BatchSize int
	// PageShift defaults to the adjacency default.
	PageShift uint
}

func (d Dimensions) normalized() Dimensions {
	d.Concurrency = max(d.Concurrency, 1)
	d.Types = max(d.Types, 1)
	if d.BatchSize <= 0 {
		d.BatchSize = DefaultBatchSize
	}
	if d.PageShift == 0 {
		d.PageShift = adjacency.DefaultPageShift
	}
	return d
}

// Estimate returns the memory tree of an import.
func Estimate(d Dimensions) Tree {
	d = d.normalized()
	directions := uint64(1)
	if d.InverseIndex && !d.Undirected {
		directions = 2
	}
	lists := uint64(d.Types) * directions
	stored := d.RelationshipCount * directions
	if d.Undirected {
		stored *= 2
	}

	graph := Group("graph",
		idMap(d),
		topology(d, lists, stored),
	)
	return Group("import",
		graph,
		scratch(d, stored),
	)
}

// Bounds returns the total bounds of an import of nodeCount nodes and
// relationshipCount untyped edges without properties.
func Bounds(nodeCount, relationshipCount uint64, concurrency int) Range {
	return Estimate(Dimensions{
		NodeCount:         nodeCount,
		RelationshipCount: relationshipCount,
		Concurrency:       concurrency,
	}).Range
}

func idMap(d Dimensions) Tree {
	lower, upper := idmap.BytesFor(d.NodeCount)
	labelBytes := uint64(d.Labels) * ((d.NodeCount + 63) / 64) * 8
	return Group("id map",
		Leaf("original ids", Range{Min: lower, Max: upper}),
		Leaf("labels", Fixed(labelBytes)),
	)
}

func topology(d Dimensions, lists, stored uint64) Tree {
	slots := d.NodeCount * lists
	offsets := Fixed(paged.BytesFor[uint64](d.NodeCount)).Times(lists)

	// Nodes without edges share the empty run of their list.
	shared := lists * varint.HeaderLen
	pageBytes := uint64(1) << d.PageShift
	partial := lists * uint64(d.Concurrency) * pageBytes
	runs := Range{
		Min: shared + min(slots, stored)*varint.HeaderLen + stored,
		Max: shared + slots*varint.HeaderLen + stored*varint.MaxVarintLen + partial,
	}

	components := []Tree{
		Leaf("offsets", offsets),
		Leaf("adjacency runs", runs),
	}
	if d.HasProperty {
		components = append(components,
			Leaf("property offsets", offsets),
			Leaf("property values", Range{Min: stored * PropertyBytes, Max: stored*PropertyBytes + partial}),
		)
	}
	return Group("topology", components...)
}

func scratch(d Dimensions, stored uint64) Tree {
	conc := uint64(d.Concurrency)
	batch := uint64(d.BatchSize)

	valueBytes := uint64(8)
	if d.HasProperty {
		valueBytes += PropertyBytes
	}
	return Group("import scratch",
		Leaf("band buffers", Range{Min: stored * RecordBytes, Max: 2 * stored * RecordBytes}),
		Leaf("scanner batches", Range{
			Min: conc * batch * EdgeBytes,
			Max: conc*batch*EdgeBytes + conc*conc*batch*RecordBytes,
		}),
		Leaf("routed batches", Range{Max: conc * conc * batch * RecordBytes}),
		Leaf("flush buffers", Range{Max: stored*valueBytes + 2*(d.NodeCount+conc)*8}),
	)
}
