package csrgo

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/internal/importer"
	"github.com/hupe1980/csrgo/internal/pool"
	"github.com/hupe1980/csrgo/model"
)

// Cursor iterates the ascending targets of one node at a time. A cursor is
// not safe for concurrent use; each reader owns its own.
type Cursor = adjacency.Traverser

// graphStore is the immutable state shared by a graph and its views.
type graphStore struct {
	ids        *idmap.Map
	result     *importer.Result
	topologies map[RelationshipType]*topology
	types      []RelationshipType
	rc         *ResourceController
	idCharge   int64
	logger     *Logger
	metrics    MetricsCollector
	summary    ImportSummary
	transposer importer.TransposeConfig
	closed     atomic.Bool
}

// topology is one relationship type plus its lazily built inverse.
type topology struct {
	store *graphStore
	t     *importer.Topology

	cursors    *pool.Pool[*adjacency.Cursor]
	properties *pool.Pool[*adjacency.PropertyCursor]

	once           sync.Once
	inverse        *adjacency.List
	inverseProps   *adjacency.Properties
	inverseErr     error
	inverseCursors *pool.Pool[*adjacency.Cursor]
}

func newTopology(store *graphStore, t *importer.Topology) *topology {
	tp := &topology{store: store, t: t}
	tp.cursors = pool.New(t.Forward.NewCursor, (*adjacency.Cursor).Unbind)
	if t.ForwardProperties != nil {
		tp.properties = pool.New(t.ForwardProperties.NewCursor, nil)
	}
	switch {
	case t.Inverse != nil:
		tp.inverseCursors = pool.New(t.Inverse.NewCursor, (*adjacency.Cursor).Unbind)
	case t.Config.Orientation == model.Undirected:
		tp.inverseCursors = tp.cursors
	}
	return tp
}

func (t *topology) name() RelationshipType { return t.t.Type }

func (t *topology) list() *adjacency.List { return t.t.Forward }

// inverseLists returns the inverse adjacency, transposing on first use for
// lazily indexed types.
func (t *topology) inverseLists() (*adjacency.List, *adjacency.Properties, error) {
	switch {
	case t.t.Inverse != nil:
		return t.t.Inverse, t.t.InverseProperties, nil
	case t.t.Config.Orientation == model.Undirected:
		return t.t.Forward, t.t.ForwardProperties, nil
	case t.t.Config.Inverse != InverseLazy:
		return nil, nil, fmt.Errorf("%w: type %q", ErrInverseNotIndexed, t.name())
	}

	t.once.Do(func() {
		ctx := context.Background()
		start := time.Now()
		t.inverse, t.inverseProps, t.inverseErr = importer.Transpose(ctx, t.t.Forward, t.t.ForwardProperties, t.store.transposer)
		t.inverseErr = translateError(t.inverseErr)
		if t.inverseErr == nil {
			t.inverseCursors = pool.New(t.inverse.NewCursor, (*adjacency.Cursor).Unbind)
		}
		t.store.logger.LogInverseIndexed(ctx, t.name(), t.t.Forward.RelationshipCount(), time.Since(start), t.inverseErr)
	})
	return t.inverse, t.inverseProps, t.inverseErr
}

// inverseCursor returns a pooled cursor over the inverse adjacency bound to
// node. The caller puts it back into the returned pool.
func (t *topology) inverseCursor(node NodeID) (*adjacency.Cursor, *pool.Pool[*adjacency.Cursor], error) {
	if _, _, err := t.inverseLists(); err != nil {
		return nil, nil, err
	}
	c := t.inverseCursors.Get()
	c.Init(node)
	return c, t.inverseCursors, nil
}

// forEachWithProperty walks the run of node and its properties in
// lockstep. It returns false if fn stopped the iteration.
func (t *topology) forEachWithProperty(node NodeID, fallback float64, visited *int, fn func(source, target NodeID, property float64) bool) bool {
	c := t.cursors.Get()
	defer t.cursors.Put(c)
	c.Init(node)

	var pc *adjacency.PropertyCursor
	if t.properties != nil {
		pc = t.properties.Get()
		defer t.properties.Put(pc)
		pc.Init(node, c.Degree())
	}
	for c.HasNext() {
		target := c.Next()
		p := fallback
		if pc != nil {
			p = pc.Next()
		}
		*visited++
		if !fn(node, target, p) {
			return false
		}
	}
	return true
}

func (t *topology) release() {
	t.t.Release()
	t.once.Do(func() {})
	if t.inverse != nil {
		t.inverse.Release()
		if t.inverseProps != nil {
			t.inverseProps.Release()
		}
	}
}

func (t *topology) memoryUsage() uint64 {
	total := t.t.Forward.MemoryUsage()
	if t.t.ForwardProperties != nil {
		total += t.t.ForwardProperties.MemoryUsage()
	}
	if t.t.Inverse != nil && t.t.Inverse != t.t.Forward {
		total += t.t.Inverse.MemoryUsage()
		if t.t.InverseProperties != nil {
			total += t.t.InverseProperties.MemoryUsage()
		}
	}
	if t.inverse != nil {
		total += t.inverse.MemoryUsage()
		if t.inverseProps != nil {
			total += t.inverseProps.MemoryUsage()
		}
	}
	return total
}

// Graph is an immutable in-memory graph in compressed sparse row form.
//
// A Graph is safe for concurrent use by any number of readers. Views
// returned by Type and RelationshipTypeFilteredGraph share its storage.
type Graph struct {
	store    *graphStore
	selected []*topology
	// composite pools merged cursors of views over several types.
	composite *pool.Pool[*adjacency.CompositeCursor]
}

func newGraph(store *graphStore) *Graph {
	store.topologies = make(map[RelationshipType]*topology, len(store.result.Topologies))
	for name, t := range store.result.Topologies {
		store.topologies[name] = newTopology(store, t)
		store.types = append(store.types, name)
	}
	slices.Sort(store.types)
	return newGraphView(store, store.types)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int64 { return g.store.ids.NodeCount() }

// RelationshipCount returns the number of stored relationships of the
// selected types. Undirected relationships count once per direction.
func (g *Graph) RelationshipCount() int64 {
	var total int64
	for _, t := range g.selected {
		total += t.list().RelationshipCount()
	}
	return total
}

// RelationshipTypes returns the selected types in ascending order.
func (g *Graph) RelationshipTypes() []RelationshipType {
	names := make([]RelationshipType, len(g.selected))
	for i, t := range g.selected {
		names[i] = t.name()
	}
	return names
}

// Type returns a view of a single relationship type.
func (g *Graph) Type(name RelationshipType) (*Graph, error) {
	return g.RelationshipTypeFilteredGraph(name)
}

// RelationshipTypeFilteredGraph returns a view over the given types. With
// no arguments the view covers every type of the graph.
func (g *Graph) RelationshipTypeFilteredGraph(types ...RelationshipType) (*Graph, error) {
	if len(types) == 0 {
		return newGraphView(g.store, g.store.types), nil
	}
	seen := make(map[RelationshipType]bool, len(types))
	var names []RelationshipType
	for _, name := range types {
		if _, ok := g.store.topologies[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRelationshipType, name)
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return newGraphView(g.store, names), nil
}

func newGraphView(store *graphStore, names []RelationshipType) *Graph {
	v := &Graph{store: store}
	for _, name := range names {
		v.selected = append(v.selected, store.topologies[name])
	}
	if len(v.selected) > 1 {
		lists := v.lists()
		v.composite = pool.New(func() *adjacency.CompositeCursor {
			return adjacency.NewCompositeCursor(lists...)
		}, (*adjacency.CompositeCursor).Unbind)
	}
	return v
}

func (g *Graph) lists() []*adjacency.List {
	lists := make([]*adjacency.List, len(g.selected))
	for i, t := range g.selected {
		lists[i] = t.list()
	}
	return lists
}

// Degree returns the number of relationships of node over the selected
// types.
func (g *Graph) Degree(node NodeID) int {
	d := 0
	for _, t := range g.selected {
		d += t.list().Degree(node)
	}
	return d
}

// DegreeWithoutParallelRelationships returns the number of distinct
// targets of node.
func (g *Graph) DegreeWithoutParallelRelationships(node NodeID) int {
	if !g.IsMultiGraph() {
		return g.Degree(node)
	}
	distinct := 0
	prev := NotFound
	count := func(c Cursor) {
		for c.HasNext() {
			if t := c.Next(); t != prev {
				distinct++
				prev = t
			}
		}
	}
	if g.composite != nil {
		c := g.composite.Get()
		defer g.composite.Put(c)
		c.Init(node)
		count(c)
		return distinct
	}
	for _, t := range g.selected {
		c := t.cursors.Get()
		c.Init(node)
		count(c)
		t.cursors.Put(c)
	}
	return distinct
}

// IsMultiGraph reports whether a source may reach the same target more
// than once. A view over several types is always treated as a multigraph.
func (g *Graph) IsMultiGraph() bool {
	if len(g.selected) > 1 {
		return true
	}
	for _, t := range g.selected {
		if t.list().IsMultiGraph() {
			return true
		}
	}
	return false
}

// HasRelationshipProperty reports whether every selected type stores a
// property.
func (g *Graph) HasRelationshipProperty() bool {
	if len(g.selected) == 0 {
		return false
	}
	for _, t := range g.selected {
		if t.t.ForwardProperties == nil {
			return false
		}
	}
	return true
}

// NewCursor returns an unbound cursor over the selected types. Targets of
// several types are merged in ascending order.
func (g *Graph) NewCursor() Cursor {
	if len(g.selected) == 1 {
		return g.selected[0].list().NewCursor()
	}
	return adjacency.NewCompositeCursor(g.lists()...)
}

// CursorFor returns a cursor bound to node.
func (g *Graph) CursorFor(node NodeID) Cursor {
	c := g.NewCursor()
	c.Init(node)
	return c
}

// ForEachRelationship calls fn for every relationship of node until fn
// returns false. Types are visited one after another.
func (g *Graph) ForEachRelationship(node NodeID, fn func(source, target NodeID) bool) {
	visited := 0
	defer func() { g.store.metrics.RecordTraversal(visited) }()

	for _, t := range g.selected {
		c := t.cursors.Get()
		c.Init(node)
		for c.HasNext() {
			visited++
			if !fn(node, c.Next()) {
				t.cursors.Put(c)
				return
			}
		}
		t.cursors.Put(c)
	}
}

// ForEachRelationshipWithProperty is ForEachRelationship with the stored
// property of each relationship, or fallback for types without one.
func (g *Graph) ForEachRelationshipWithProperty(node NodeID, fallback float64, fn func(source, target NodeID, property float64) bool) {
	visited := 0
	defer func() { g.store.metrics.RecordTraversal(visited) }()

	for _, t := range g.selected {
		if !t.forEachWithProperty(node, fallback, &visited, fn) {
			return
		}
	}
}

// ForEachInverseRelationship calls fn for every relationship ending at
// node. It fails with ErrInverseNotIndexed for types imported without an
// inverse index. Lazy inverse indexes are built on the first call.
func (g *Graph) ForEachInverseRelationship(node NodeID, fn func(target, source NodeID) bool) error {
	visited := 0
	defer func() { g.store.metrics.RecordTraversal(visited) }()

	for _, t := range g.selected {
		c, cursors, err := t.inverseCursor(node)
		if err != nil {
			return err
		}
		for c.HasNext() {
			visited++
			if !fn(node, c.Next()) {
				cursors.Put(c)
				return nil
			}
		}
		cursors.Put(c)
	}
	return nil
}

// DegreeInverse returns the number of relationships ending at node.
func (g *Graph) DegreeInverse(node NodeID) (int, error) {
	d := 0
	for _, t := range g.selected {
		inv, _, err := t.inverseLists()
		if err != nil {
			return 0, err
		}
		d += inv.Degree(node)
	}
	return d, nil
}

// Exists reports whether a relationship source -> target exists.
func (g *Graph) Exists(source, target NodeID) bool {
	if target < 0 {
		return false
	}
	for _, t := range g.selected {
		c := t.cursors.Get()
		c.Init(source)
		found := c.Advance(target) == target
		t.cursors.Put(c)
		if found {
			return true
		}
	}
	return false
}

// NthTarget returns the offset-th target of node in ascending order, or
// NotFound if node has no more than offset targets.
func (g *Graph) NthTarget(node NodeID, offset int) NodeID {
	if offset < 0 || offset >= g.Degree(node) {
		return NotFound
	}
	if len(g.selected) == 1 {
		t := g.selected[0]
		c := t.cursors.Get()
		defer t.cursors.Put(c)
		c.Init(node)
		return c.AdvanceBy(offset)
	}
	c := g.composite.Get()
	defer g.composite.Put(c)
	c.Init(node)
	return c.AdvanceBy(offset)
}

// RelationshipProperty returns the property of the first relationship
// source -> target, or fallback when there is none or its type stores no
// property.
func (g *Graph) RelationshipProperty(source, target NodeID, fallback float64) float64 {
	for _, t := range g.selected {
		if t.properties == nil {
			continue
		}
		c := t.cursors.Get()
		pc := t.properties.Get()
		c.Init(source)
		pc.Init(source, c.Degree())
		for c.HasNext() {
			n := c.Next()
			p := pc.Next()
			if n == target {
				t.cursors.Put(c)
				t.properties.Put(pc)
				return p
			}
			if n > target {
				break
			}
		}
		t.cursors.Put(c)
		t.properties.Put(pc)
	}
	return fallback
}

// ToInternal maps an original id to its node id, or NotFound.
func (g *Graph) ToInternal(original uint64) NodeID { return g.store.ids.ToInternal(original) }

// ToOriginal maps a node id back to its original id. It panics when node
// is out of range.
func (g *Graph) ToOriginal(node NodeID) uint64 { return g.store.ids.ToOriginal(node) }

// Contains reports whether original is part of the node set.
func (g *Graph) Contains(original uint64) bool { return g.store.ids.Contains(original) }

// HighestOriginalID returns the largest original id.
func (g *Graph) HighestOriginalID() uint64 { return g.store.ids.HighestOriginalID() }

// NodeLabels returns the labels of node.
func (g *Graph) NodeLabels(node NodeID) []Label { return g.store.ids.Labels(node) }

// HasLabel reports whether node carries label.
func (g *Graph) HasLabel(node NodeID, label Label) bool { return g.store.ids.HasLabel(node, label) }

// NodeCountForLabel returns the number of nodes carrying label.
func (g *Graph) NodeCountForLabel(label Label) int64 { return g.store.ids.NodeCountFor(label) }

// AvailableLabels returns every label in ascending order.
func (g *Graph) AvailableLabels() []Label { return g.store.ids.AvailableLabels() }

// ForEachNode calls fn for every node, or for nodes carrying any of labels,
// until fn returns false.
func (g *Graph) ForEachNode(fn func(NodeID) bool, labels ...Label) {
	g.store.ids.ForEachNode(fn, labels...)
}

// Batch is a half-open range of node ids.
type Batch struct {
	Start NodeID
	End   NodeID
}

// Len returns the number of nodes in b.
func (b Batch) Len() int64 { return b.End - b.Start }

// Batches splits the node range into consecutive batches of at most
// batchSize nodes. A non-positive batchSize yields one batch.
func (g *Graph) Batches(batchSize int64) iter.Seq[Batch] {
	n := g.NodeCount()
	if batchSize <= 0 {
		batchSize = max(n, 1)
	}
	return func(yield func(Batch) bool) {
		for start := int64(0); start < n; start += batchSize {
			if !yield(Batch{Start: start, End: min(start+batchSize, n)}) {
				return
			}
		}
	}
}

// Summary returns the import statistics.
func (g *Graph) Summary() ImportSummary { return g.store.summary }

// UnknownNodeIDs returns the distinct original ids that edges referenced
// but the node set lacked. It is empty for strict imports.
func (g *Graph) UnknownNodeIDs() []uint64 {
	if g.store.result.Unknown == nil {
		return nil
	}
	return g.store.result.Unknown.ToArray()
}

// MemoryUsage returns the bytes held by the graph, including any inverse
// index built so far.
func (g *Graph) MemoryUsage() uint64 {
	total := g.store.ids.MemoryUsage()
	for _, name := range g.store.types {
		total += g.store.topologies[name].memoryUsage()
	}
	return total
}

// Close releases the graph and its reservation on the resource
// controller. It is idempotent. Closing a view closes the whole graph; no
// method may be called afterwards.
func (g *Graph) Close() error {
	s := g.store
	if s.closed.Swap(true) {
		return nil
	}
	for _, name := range s.types {
		s.topologies[name].release()
	}
	s.rc.ReleaseMemory(s.idCharge)
	return nil
}
