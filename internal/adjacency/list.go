package adjacency

import (
	"sync"

	"github.com/hupe1980/csrgo/internal/paged"
	"github.com/hupe1980/csrgo/internal/varint"
	"github.com/hupe1980/csrgo/model"
)

// List is an immutable compressed adjacency list: one offset per node into
// pages of delta-varint runs. It is safe for concurrent readers.
type List struct {
	offsets   *paged.Array[uint64]
	pages     [][]byte
	pageShift uint
	pageMask  uint64

	nodeCount     int64
	relationships int64
	multiGraph    bool

	release     func()
	releaseOnce sync.Once
}

// NodeCount returns the number of nodes, including those without edges.
func (l *List) NodeCount() int64 { return l.nodeCount }

// RelationshipCount returns the number of stored edges.
func (l *List) RelationshipCount() int64 { return l.relationships }

// IsMultiGraph reports whether any node stores parallel edges.
func (l *List) IsMultiGraph() bool { return l.multiGraph }

func (l *List) run(node model.NodeID) []byte {
	off := l.offsets.Get(uint64(node))
	return l.pages[off>>l.pageShift][off&l.pageMask:]
}

// Degree returns the number of targets of node.
func (l *List) Degree(node model.NodeID) int {
	return varint.Degree(l.run(node))
}

// NewCursor returns an unbound cursor over l.
func (l *List) NewCursor() *Cursor {
	return &Cursor{list: l, node: model.NotFound}
}

// Cursor binds reuse to node, allocating a new cursor only when reuse is
// nil or belongs to another list.
func (l *List) Cursor(reuse *Cursor, node model.NodeID) *Cursor {
	if reuse == nil || reuse.list != l {
		reuse = l.NewCursor()
	}
	reuse.Init(node)
	return reuse
}

// Targets decodes every target of node into dst.
func (l *List) Targets(dst []model.NodeID, node model.NodeID) []model.NodeID {
	var d varint.Decoder
	d.Reset(l.run(node))
	for d.HasMore() {
		dst = append(dst, int64(d.Next()))
	}
	return dst
}

// MemoryUsage returns the bytes held by offsets and pages.
func (l *List) MemoryUsage() uint64 {
	total := l.offsets.MemoryUsage()
	for _, p := range l.pages {
		total += uint64(len(p))
	}
	return total
}

// PageCount returns the number of byte pages.
func (l *List) PageCount() int { return len(l.pages) }

// Release returns the list's memory reservation. The list must not be used
// afterwards.
func (l *List) Release() {
	l.releaseOnce.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}
