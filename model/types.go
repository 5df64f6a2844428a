package model

import (
	"fmt"
	"math"
	"strings"
)

// NodeID is a dense, graph-local node identifier in [0, nodeCount).
type NodeID = int64

// NotFound is returned by lookups that miss.
const NotFound NodeID = -1

// Label tags a node. A node may carry any number of labels.
type Label string

// RelationshipType routes edges to independent per-type topologies.
type RelationshipType string

// AllRelationships is the type of edges imported without a type tag.
const AllRelationships RelationshipType = "*"

// Edge is a raw edge record as supplied by a loader.
// Source and Target are original (external) node ids.
type Edge struct {
	Source uint64
	Target uint64
	// Property is NaN when the edge carries no value.
	Property float64
	// Type is empty for untagged edges.
	Type RelationshipType
}

// NewEdge returns an untyped edge without a property.
func NewEdge(source, target uint64) Edge {
	return Edge{Source: source, Target: target, Property: math.NaN()}
}

// WithProperty returns a copy of e carrying the given value.
func (e Edge) WithProperty(value float64) Edge {
	e.Property = value
	return e
}

// WithType returns a copy of e tagged with the given relationship type.
func (e Edge) WithType(t RelationshipType) Edge {
	e.Type = t
	return e
}

// HasProperty reports whether the edge carries a value.
func (e Edge) HasProperty() bool { return !math.IsNaN(e.Property) }

// String returns a string representation of the Edge.
func (e Edge) String() string {
	if e.HasProperty() {
		return fmt.Sprintf("(%d)-[%s %g]->(%d)", e.Source, e.Type, e.Property, e.Target)
	}
	return fmt.Sprintf("(%d)-[%s]->(%d)", e.Source, e.Type, e.Target)
}

// Node is one entry of the node universe.
type Node struct {
	ID     uint64
	Labels []Label
}

// NewNode returns a node with the given original id and labels.
func NewNode(id uint64, labels ...Label) Node {
	return Node{ID: id, Labels: labels}
}

// Orientation controls how a raw edge is projected onto the adjacency lists.
type Orientation uint8

const (
	// Natural stores source -> target.
	Natural Orientation = iota
	// Reverse stores target -> source.
	Reverse
	// Undirected stores both directions. Self-loops are stored once.
	Undirected
)

// String returns the orientation name.
func (o Orientation) String() string {
	switch o {
	case Natural:
		return "natural"
	case Reverse:
		return "reverse"
	case Undirected:
		return "undirected"
	default:
		return fmt.Sprintf("orientation(%d)", uint8(o))
	}
}

// Valid reports whether o is a known orientation.
func (o Orientation) Valid() bool { return o <= Undirected }

// ParseOrientation parses a case-insensitive orientation name.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "natural", "":
		return Natural, nil
	case "reverse":
		return Reverse, nil
	case "undirected":
		return Undirected, nil
	default:
		return 0, fmt.Errorf("unknown orientation %q", s)
	}
}
