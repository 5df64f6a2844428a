// Package idmap maps original node ids to a dense internal index space.
//
// A Map is built once, single-threaded, from the node universe and is
// immutable afterwards. When original ids arrive strictly ascending the map
// keeps only the dense-to-original array and resolves lookups by binary
// search; otherwise it also keeps a hash map.
package idmap

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/csrgo/internal/conv"
	"github.com/hupe1980/csrgo/internal/paged"
	"github.com/hupe1980/csrgo/model"
)

// hashEntryBytes approximates the per-entry cost of map[uint64]int64.
const hashEntryBytes = 40

// DuplicateError is returned when an original id is added twice.
type DuplicateError struct {
	OriginalID uint64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("idmap: duplicate node id %d", e.OriginalID)
}

// Builder collects the node universe.
type Builder struct {
	originals *paged.Array[uint64]
	lookup    map[uint64]model.NodeID
	count     uint64
	highest   uint64
	ascending bool

	labels     map[model.Label]*bitset.BitSet
	labelOrder []model.Label
}

// NewBuilder creates a builder sized for expectedNodes (a hint).
func NewBuilder(expectedNodes uint64) *Builder {
	return &Builder{
		originals: paged.NewSparse[uint64](expectedNodes),
		ascending: true,
		labels:    make(map[model.Label]*bitset.BitSet),
	}
}

// Add registers an original id and returns its internal id.
func (b *Builder) Add(original uint64, labels ...model.Label) (model.NodeID, error) {
	if b.count > 0 {
		switch {
		case b.ascending && original == b.highest:
			return model.NotFound, &DuplicateError{OriginalID: original}
		case b.ascending && original < b.highest:
			b.switchToHash()
		}
	}
	if !b.ascending {
		if _, ok := b.lookup[original]; ok {
			return model.NotFound, &DuplicateError{OriginalID: original}
		}
	}

	idx := b.count
	b.originals.EnsureCapacity(idx + 1)
	b.originals.EnsurePage(int(idx >> paged.PageShift))
	b.originals.Set(idx, original)
	b.count++

	id, err := conv.Uint64ToInt64(idx)
	if err != nil {
		return model.NotFound, err
	}
	if b.lookup != nil {
		b.lookup[original] = id
	}
	if original > b.highest || idx == 0 {
		b.highest = original
	}
	for _, l := range labels {
		bs, ok := b.labels[l]
		if !ok {
			bs = bitset.New(uint(idx + 1))
			b.labels[l] = bs
			b.labelOrder = append(b.labelOrder, l)
		}
		bs.Set(uint(idx))
	}
	return id, nil
}

func (b *Builder) switchToHash() {
	b.ascending = false
	b.lookup = make(map[uint64]model.NodeID, b.count*2)
	b.originals.ForEach(func(i uint64, v uint64) bool {
		if i >= b.count {
			return false
		}
		b.lookup[v] = int64(i)
		return true
	})
}

// Build finalizes the map. The builder must not be used afterwards.
func (b *Builder) Build() *Map {
	slices.Sort(b.labelOrder)
	nodeCount, _ := conv.Uint64ToInt64(b.count)
	return &Map{
		originals:  b.originals,
		lookup:     b.lookup,
		nodeCount:  nodeCount,
		highest:    b.highest,
		labels:     b.labels,
		labelOrder: b.labelOrder,
	}
}

// Map is an immutable bijection between original and internal ids plus
// per-label node membership. It is safe for concurrent readers.
type Map struct {
	originals *paged.Array[uint64] // nil for identity maps
	lookup    map[uint64]model.NodeID
	nodeCount int64
	highest   uint64

	labels     map[model.Label]*bitset.BitSet
	labelOrder []model.Label
}

// FromRange returns the identity map over [0, n).
func FromRange(n int64) *Map {
	var highest uint64
	if n > 0 {
		highest = uint64(n - 1)
	}
	return &Map{nodeCount: n, highest: highest, labels: map[model.Label]*bitset.BitSet{}}
}

// NodeCount returns the number of nodes.
func (m *Map) NodeCount() int64 { return m.nodeCount }

// HighestOriginalID returns the largest original id.
func (m *Map) HighestOriginalID() uint64 { return m.highest }

// ToInternal returns the internal id of original, or NotFound.
func (m *Map) ToInternal(original uint64) model.NodeID {
	switch {
	case m.originals == nil:
		if original < uint64(m.nodeCount) {
			return int64(original)
		}
		return model.NotFound
	case m.lookup != nil:
		if id, ok := m.lookup[original]; ok {
			return id
		}
		return model.NotFound
	}

	lo, hi := uint64(0), uint64(m.nodeCount)
	for lo < hi {
		mid := lo + (hi-lo)/2
		v := m.originals.Get(mid)
		switch {
		case v == original:
			return int64(mid)
		case v < original:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return model.NotFound
}

// Contains reports whether original is part of the node universe.
func (m *Map) Contains(original uint64) bool {
	return m.ToInternal(original) != model.NotFound
}

// ToOriginal returns the original id of an internal id. It panics when id
// is out of range.
func (m *Map) ToOriginal(id model.NodeID) uint64 {
	if id < 0 || id >= m.nodeCount {
		panic(fmt.Sprintf("idmap: node %d out of range [0, %d)", id, m.nodeCount))
	}
	if m.originals == nil {
		return uint64(id)
	}
	return m.originals.Get(uint64(id))
}

// Labels returns the labels of id in name order.
func (m *Map) Labels(id model.NodeID) []model.Label {
	var out []model.Label
	m.ForEachLabel(id, func(l model.Label) bool {
		out = append(out, l)
		return true
	})
	return out
}

// HasLabel reports whether id carries label.
func (m *Map) HasLabel(id model.NodeID, label model.Label) bool {
	bs, ok := m.labels[label]
	return ok && bs.Test(uint(id))
}

// ForEachLabel calls fn for every label of id until fn returns false.
func (m *Map) ForEachLabel(id model.NodeID, fn func(model.Label) bool) {
	for _, l := range m.labelOrder {
		if m.labels[l].Test(uint(id)) && !fn(l) {
			return
		}
	}
}

// AvailableLabels returns every label in name order.
func (m *Map) AvailableLabels() []model.Label {
	return slices.Clone(m.labelOrder)
}

// NodeCountFor returns the number of nodes carrying label.
func (m *Map) NodeCountFor(label model.Label) int64 {
	bs, ok := m.labels[label]
	if !ok {
		return 0
	}
	return int64(bs.Count())
}

// ForEachNode calls fn for every internal id in order until fn returns
// false. When labels are given, only nodes carrying any of them are visited.
func (m *Map) ForEachNode(fn func(model.NodeID) bool, labels ...model.Label) {
	if len(labels) == 0 {
		for id := range m.nodeCount {
			if !fn(id) {
				return
			}
		}
		return
	}
	union := bitset.New(0)
	for _, l := range labels {
		if bs, ok := m.labels[l]; ok {
			union.InPlaceUnion(bs)
		}
	}
	for i, ok := union.NextSet(0); ok; i, ok = union.NextSet(i + 1) {
		if !fn(int64(i)) {
			return
		}
	}
}

// MemoryUsage returns an approximation of the bytes held by the map.
func (m *Map) MemoryUsage() uint64 {
	var total uint64
	if m.originals != nil {
		total += m.originals.MemoryUsage()
	}
	total += uint64(len(m.lookup)) * hashEntryBytes
	for _, bs := range m.labels {
		total += uint64(len(bs.Words())) * 8
	}
	return total
}

// BytesFor returns the lower and upper memory bound of a map over n nodes.
// The lower bound assumes ascending ids, the upper one a hash map.
func BytesFor(n uint64) (lower, upper uint64) {
	lower = paged.BytesFor[uint64](n)
	return lower, lower + n*hashEntryBytes
}
