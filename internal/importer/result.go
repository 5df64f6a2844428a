package importer

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/model"
)

// Topology is the imported adjacency of one relationship type.
type Topology struct {
	Type   model.RelationshipType
	Config TypeConfig

	Forward           *adjacency.List
	ForwardProperties *adjacency.Properties
	// Inverse is set for eager inverse indexes and for undirected types,
	// where it is the same list as Forward.
	Inverse           *adjacency.List
	InverseProperties *adjacency.Properties

	// Duplicates is the number of parallel edges collapsed by aggregation.
	Duplicates int64
}

// Release returns all memory charged for t.
func (t *Topology) Release() {
	t.Forward.Release()
	if t.ForwardProperties != nil {
		t.ForwardProperties.Release()
	}
	if t.Inverse != nil && t.Inverse != t.Forward {
		t.Inverse.Release()
		if t.InverseProperties != nil {
			t.InverseProperties.Release()
		}
	}
}

// Summary describes a finished import.
type Summary struct {
	EdgesRead            uint64
	EdgesImported        uint64
	Discarded            uint64
	UnknownNodeIDs       uint64
	DuplicatesAggregated uint64
	// PerType is the number of stored relationships per type.
	PerType  map[model.RelationshipType]uint64
	Duration time.Duration
	Shards   int
}

// Result is the output of Run.
type Result struct {
	Topologies map[model.RelationshipType]*Topology
	Summary    Summary
	// Unknown holds the distinct original ids that were referenced by
	// edges but missing from the id map. It is empty in strict mode.
	Unknown *roaring64.Bitmap
}

// Release returns all memory charged for r.
func (r *Result) Release() {
	for _, t := range r.Topologies {
		t.Release()
	}
}
