package adjacency

import "github.com/hupe1980/csrgo/model"

// CompositeCursor merges the runs of several lists for the same node into
// one ascending stream. It backs traversal over a union of relationship
// types.
type CompositeCursor struct {
	cursors []*Cursor
	node    model.NodeID
	bound   bool
}

var _ Traverser = (*CompositeCursor)(nil)

// NewCompositeCursor returns an unbound cursor over lists.
func NewCompositeCursor(lists ...*List) *CompositeCursor {
	cursors := make([]*Cursor, len(lists))
	for i, l := range lists {
		cursors[i] = l.NewCursor()
	}
	return &CompositeCursor{cursors: cursors, node: model.NotFound}
}

// Init binds every sub-cursor to node.
func (c *CompositeCursor) Init(node model.NodeID) {
	for _, sub := range c.cursors {
		sub.Init(node)
	}
	c.node = node
	c.bound = true
}

func (c *CompositeCursor) mustBeBound() {
	if !c.bound {
		panic("adjacency: cursor used while unbound")
	}
}

// min returns the sub-cursor holding the smallest next target.
func (c *CompositeCursor) min() *Cursor {
	var best *Cursor
	bestID := model.NotFound
	for _, sub := range c.cursors {
		if !sub.HasNext() {
			continue
		}
		if id := sub.Peek(); best == nil || id < bestID {
			best, bestID = sub, id
		}
	}
	return best
}

// HasNext reports whether any sub-cursor has targets left.
func (c *CompositeCursor) HasNext() bool {
	c.mustBeBound()
	for _, sub := range c.cursors {
		if sub.HasNext() {
			return true
		}
	}
	return false
}

// Next returns the smallest remaining target.
func (c *CompositeCursor) Next() model.NodeID {
	c.mustBeBound()
	best := c.min()
	if best == nil {
		panic("adjacency: cursor exhausted")
	}
	return best.Next()
}

// Peek returns the smallest remaining target, or NotFound.
func (c *CompositeCursor) Peek() model.NodeID {
	c.mustBeBound()
	if best := c.min(); best != nil {
		return best.Peek()
	}
	return model.NotFound
}

// Remaining returns the number of targets left across all sub-cursors.
func (c *CompositeCursor) Remaining() int {
	c.mustBeBound()
	n := 0
	for _, sub := range c.cursors {
		n += sub.Remaining()
	}
	return n
}

// AdvanceBy skips n targets in merged order and returns the following one.
func (c *CompositeCursor) AdvanceBy(n int) model.NodeID {
	c.mustBeBound()
	for ; n > 0 && c.HasNext(); n-- {
		c.Next()
	}
	if !c.HasNext() {
		return model.NotFound
	}
	return c.Next()
}

// Advance returns the first remaining target >= target, or NotFound.
func (c *CompositeCursor) Advance(target model.NodeID) model.NodeID {
	c.mustBeBound()
	for _, sub := range c.cursors {
		for sub.HasNext() && sub.Peek() < target {
			sub.Next()
		}
	}
	if !c.HasNext() {
		return model.NotFound
	}
	return c.Next()
}

// Degree returns the summed degree of the bound node.
func (c *CompositeCursor) Degree() int {
	c.mustBeBound()
	n := 0
	for _, sub := range c.cursors {
		n += sub.Degree()
	}
	return n
}

// Node returns the bound node, or NotFound.
func (c *CompositeCursor) Node() model.NodeID { return c.node }

// Unbind detaches the cursor.
func (c *CompositeCursor) Unbind() {
	for _, sub := range c.cursors {
		sub.Unbind()
	}
	c.node = model.NotFound
	c.bound = false
}
