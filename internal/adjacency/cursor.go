package adjacency

import (
	"github.com/hupe1980/csrgo/internal/varint"
	"github.com/hupe1980/csrgo/model"
)

// Traverser is the read interface shared by Cursor and CompositeCursor.
type Traverser interface {
	// Init binds the traverser to node.
	Init(node model.NodeID)
	// HasNext reports whether Next may be called.
	HasNext() bool
	// Next returns the next target.
	Next() model.NodeID
	// Peek returns the next target without consuming it, or NotFound.
	Peek() model.NodeID
	// Remaining returns the number of targets not yet returned.
	Remaining() int
	// AdvanceBy skips n targets and returns the following one, or NotFound.
	AdvanceBy(n int) model.NodeID
	// Advance returns the first remaining target >= target, or NotFound.
	Advance(target model.NodeID) model.NodeID
	// Degree returns the degree of the bound node.
	Degree() int
	// Node returns the bound node, or NotFound.
	Node() model.NodeID
	// Unbind detaches the traverser.
	Unbind()
}

type cursorState uint8

const (
	unbound cursorState = iota
	bound
	exhausted
)

// Cursor decodes one node's run lazily. It is not safe for concurrent use;
// rebinding with Init never allocates.
type Cursor struct {
	list  *List
	dec   varint.Decoder
	node  model.NodeID
	state cursorState
}

var _ Traverser = (*Cursor)(nil)

// Init binds c to node. Any state is valid before Init.
func (c *Cursor) Init(node model.NodeID) {
	c.dec.Reset(c.list.run(node))
	c.node = node
	if c.dec.HasMore() {
		c.state = bound
	} else {
		c.state = exhausted
	}
}

func (c *Cursor) mustBeBound() {
	if c.state == unbound {
		panic("adjacency: cursor used while unbound")
	}
}

// HasNext reports whether Next may be called.
func (c *Cursor) HasNext() bool {
	c.mustBeBound()
	return c.state == bound
}

// Next returns the next target. Calling Next on an exhausted cursor panics.
func (c *Cursor) Next() model.NodeID {
	c.mustBeBound()
	if c.state == exhausted {
		panic("adjacency: cursor exhausted")
	}
	v := c.dec.Next()
	if !c.dec.HasMore() {
		c.state = exhausted
	}
	return int64(v)
}

// Peek returns the next target without consuming it, or NotFound.
func (c *Cursor) Peek() model.NodeID {
	c.mustBeBound()
	if c.state == exhausted {
		return model.NotFound
	}
	return int64(c.dec.Peek())
}

// Remaining returns the number of targets not yet returned.
func (c *Cursor) Remaining() int {
	c.mustBeBound()
	return c.dec.Remaining()
}

// AdvanceBy skips n targets and returns the following one, or NotFound if
// fewer remain. The cursor is exhausted afterwards when NotFound is returned.
func (c *Cursor) AdvanceBy(n int) model.NodeID {
	c.mustBeBound()
	if n >= c.dec.Remaining() {
		c.dec.Skip(c.dec.Remaining())
		c.state = exhausted
		return model.NotFound
	}
	c.dec.Skip(n)
	return c.Next()
}

// Advance consumes targets until one >= target is found and returns it, or
// NotFound when the run ends first.
func (c *Cursor) Advance(target model.NodeID) model.NodeID {
	c.mustBeBound()
	for c.state == bound {
		if v := c.Next(); v >= target {
			return v
		}
	}
	return model.NotFound
}

// Degree returns the degree of the bound node.
func (c *Cursor) Degree() int {
	c.mustBeBound()
	return c.dec.Degree()
}

// Node returns the bound node, or NotFound.
func (c *Cursor) Node() model.NodeID { return c.node }

// Unbind detaches the cursor.
func (c *Cursor) Unbind() {
	c.state = unbound
	c.node = model.NotFound
}
