package adjacency

import (
	"math"
	"sync"

	"github.com/hupe1980/csrgo/internal/paged"
	"github.com/hupe1980/csrgo/model"
)

// Properties stores one float64 per edge, in the order the adjacency
// cursor of the companion List decodes targets.
type Properties struct {
	offsets   *paged.Array[uint64]
	pages     [][]uint64
	pageShift uint
	pageMask  uint64

	release     func()
	releaseOnce sync.Once
}

// NewCursor returns an unbound property cursor.
func (p *Properties) NewCursor() *PropertyCursor {
	return &PropertyCursor{props: p}
}

// Cursor binds reuse to node, allocating only when reuse is nil or belongs
// to other properties.
func (p *Properties) Cursor(reuse *PropertyCursor, node model.NodeID, degree int) *PropertyCursor {
	if reuse == nil || reuse.props != p {
		reuse = p.NewCursor()
	}
	reuse.Init(node, degree)
	return reuse
}

// MemoryUsage returns the bytes held by offsets and pages.
func (p *Properties) MemoryUsage() uint64 {
	total := p.offsets.MemoryUsage()
	for _, page := range p.pages {
		total += uint64(len(page)) * 8
	}
	return total
}

// Release returns the memory reservation of p.
func (p *Properties) Release() {
	p.releaseOnce.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}

// PropertyCursor walks the values of one node in lockstep with a Cursor.
type PropertyCursor struct {
	props     *Properties
	values    []uint64
	pos       int
	remaining int
}

// Init binds the cursor to node, whose degree must come from the companion
// List.
func (c *PropertyCursor) Init(node model.NodeID, degree int) {
	c.pos = 0
	c.remaining = degree
	if degree == 0 {
		c.values = nil
		return
	}
	off := c.props.offsets.Get(uint64(node))
	c.values = c.props.pages[off>>c.props.pageShift][off&c.props.pageMask:]
}

// HasNext reports whether a value is left.
func (c *PropertyCursor) HasNext() bool { return c.remaining > 0 }

// NextBits returns the raw bits of the next value.
func (c *PropertyCursor) NextBits() uint64 {
	if c.remaining == 0 {
		panic("adjacency: property cursor exhausted")
	}
	v := c.values[c.pos]
	c.pos++
	c.remaining--
	return v
}

// Next returns the next value.
func (c *PropertyCursor) Next() float64 {
	return math.Float64frombits(c.NextBits())
}

// Skip consumes n values.
func (c *PropertyCursor) Skip(n int) {
	n = min(n, c.remaining)
	c.pos += n
	c.remaining -= n
}
