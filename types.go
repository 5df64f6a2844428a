package csrgo

import (
	"io"

	"github.com/hupe1980/csrgo/internal/importer"
	"github.com/hupe1980/csrgo/internal/resource"
	"github.com/hupe1980/csrgo/model"
)

type (
	// NodeID is a dense internal node id in [0, NodeCount()).
	NodeID = model.NodeID
	// RelationshipType names an independent topology.
	RelationshipType = model.RelationshipType
	// Label tags nodes.
	Label = model.Label

	// TypeConfig configures one relationship type.
	TypeConfig = importer.TypeConfig
	// InverseIndex selects whether and when inverse adjacency is built.
	InverseIndex = importer.InverseIndex

	// ResourceController enforces a memory budget and IO limits shared by
	// any number of imports.
	ResourceController = resource.Controller
	// ResourceConfig configures a ResourceController.
	ResourceConfig = resource.Config
)

// NotFound is returned by id lookups that miss.
const NotFound = model.NotFound

// AllRelationships is the type of untagged edges.
const AllRelationships = model.AllRelationships

const (
	// InverseNone builds no inverse adjacency.
	InverseNone = importer.InverseNone
	// InverseEager builds inverse adjacency during the import.
	InverseEager = importer.InverseEager
	// InverseLazy builds inverse adjacency on first use.
	InverseLazy = importer.InverseLazy
)

// ParseInverseIndex parses "none", "eager" or "lazy".
func ParseInverseIndex(s string) (InverseIndex, error) {
	return importer.ParseInverseIndex(s)
}

// NewResourceController creates a controller from cfg.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

// EdgeSource yields raw edges in batches and returns io.EOF, possibly with
// a final batch, at the end. edgeio.EdgeReader implements it.
type EdgeSource interface {
	NextBatch(dst []model.Edge) (int, error)
}

// NodeSource yields the node universe one node at a time and returns
// io.EOF at the end. edgeio.NodeReader implements it.
type NodeSource interface {
	Next() (model.Node, error)
}

// NewEdgeSlice returns an EdgeSource over edges.
func NewEdgeSlice(edges []model.Edge) EdgeSource {
	return importer.NewSliceSource(edges)
}

// NewNodeSlice returns a NodeSource over nodes.
func NewNodeSlice(nodes []model.Node) NodeSource {
	return &nodeSlice{nodes: nodes}
}

type nodeSlice struct {
	nodes []model.Node
	pos   int
}

func (s *nodeSlice) Next() (model.Node, error) {
	if s.pos == len(s.nodes) {
		return model.Node{}, io.EOF
	}
	n := s.nodes[s.pos]
	s.pos++
	return n, nil
}
