package csrgo

import (
	"github.com/hupe1980/csrgo/internal/estimate"
)

// MemoryRange is a [Min, Max] byte range.
type MemoryRange = estimate.Range

// MemoryTree breaks an estimate down by component.
type MemoryTree = estimate.Tree

// EstimateMemory returns the byte range an import of untyped relationships
// without properties needs, before any allocation. The bounds grow
// monotonically with every argument.
func EstimateMemory(nodeCount, relationshipCount uint64, concurrency int) (minBytes, maxBytes uint64) {
	r := estimate.Bounds(nodeCount, relationshipCount, concurrency)
	return r.Min, r.Max
}

// Estimate returns the memory tree of an import configured by opts. Node
// labels are not known up front and are not included.
func Estimate(nodeCount, relationshipCount uint64, opts ...Option) MemoryTree {
	o := applyOptions(opts)
	o.expectedRels = relationshipCount
	return estimate.Estimate(o.dimensions(nodeCount, 0))
}
