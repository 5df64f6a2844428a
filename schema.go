package csrgo

import (
	"fmt"
	"strings"

	"github.com/hupe1980/csrgo/model"
)

// LabelSchema describes one node label.
type LabelSchema struct {
	Label     Label
	NodeCount int64
}

// RelationshipSchema describes one relationship type.
type RelationshipSchema struct {
	Type          RelationshipType
	Orientation   model.Orientation
	Aggregation   model.Aggregation
	Inverse       InverseIndex
	HasProperty   bool
	MultiGraph    bool
	Relationships int64
}

// Schema summarizes the structure of a graph or view.
type Schema struct {
	NodeCount     int64
	Labels        []LabelSchema
	Relationships []RelationshipSchema
}

// Schema returns the schema of the selected types.
func (g *Graph) Schema() Schema {
	s := Schema{NodeCount: g.NodeCount()}
	for _, l := range g.AvailableLabels() {
		s.Labels = append(s.Labels, LabelSchema{Label: l, NodeCount: g.NodeCountForLabel(l)})
	}
	for _, t := range g.selected {
		cfg := t.t.Config
		s.Relationships = append(s.Relationships, RelationshipSchema{
			Type:          t.name(),
			Orientation:   cfg.Orientation,
			Aggregation:   cfg.Aggregation,
			Inverse:       cfg.Inverse,
			HasProperty:   t.t.ForwardProperties != nil,
			MultiGraph:    t.list().IsMultiGraph(),
			Relationships: t.list().RelationshipCount(),
		})
	}
	return s
}

// String renders the schema one entry per line.
func (s Schema) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "nodes: %d\n", s.NodeCount)
	for _, l := range s.Labels {
		fmt.Fprintf(&sb, "  :%s %d\n", l.Label, l.NodeCount)
	}
	for _, r := range s.Relationships {
		fmt.Fprintf(&sb, "[%s] %d relationships, %s, %s", r.Type, r.Relationships, r.Orientation, r.Aggregation)
		if r.HasProperty {
			sb.WriteString(", property")
		}
		if r.Inverse != InverseNone {
			fmt.Fprintf(&sb, ", inverse %s", r.Inverse)
		}
		if r.MultiGraph {
			sb.WriteString(", multigraph")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
