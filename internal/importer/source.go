package importer

import (
	"io"
	"math"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/model"
)

// EdgeSource yields raw edges in batches. NextBatch fills dst and returns
// the number of edges written; it returns io.EOF (possibly together with a
// final non-empty batch) when the input is exhausted. Run never calls
// NextBatch concurrently.
type EdgeSource interface {
	NextBatch(dst []model.Edge) (int, error)
}

// SliceSource serves edges from memory.
type SliceSource struct {
	edges []model.Edge
	pos   int
}

// NewSliceSource returns a source over edges. The slice is not copied.
func NewSliceSource(edges []model.Edge) *SliceSource {
	return &SliceSource{edges: edges}
}

// NextBatch implements EdgeSource.
func (s *SliceSource) NextBatch(dst []model.Edge) (int, error) {
	n := copy(dst, s.edges[s.pos:])
	s.pos += n
	if s.pos == len(s.edges) {
		return n, io.EOF
	}
	return n, nil
}

// ListSource replays a finished adjacency list as edges whose ids are the
// list's internal ids.
type ListSource struct {
	list  *adjacency.List
	props *adjacency.Properties

	cursor *adjacency.Cursor
	pcur   *adjacency.PropertyCursor
	node   model.NodeID
}

// NewListSource returns a source over list. props may be nil.
func NewListSource(list *adjacency.List, props *adjacency.Properties) *ListSource {
	s := &ListSource{list: list, props: props, cursor: list.NewCursor(), node: -1}
	if props != nil {
		s.pcur = props.NewCursor()
	}
	return s
}

// NextBatch implements EdgeSource.
func (s *ListSource) NextBatch(dst []model.Edge) (int, error) {
	n := 0
	for n < len(dst) {
		if s.node < 0 || !s.cursor.HasNext() {
			s.node++
			if s.node >= s.list.NodeCount() {
				return n, io.EOF
			}
			s.cursor.Init(s.node)
			if s.pcur != nil {
				s.pcur.Init(s.node, s.cursor.Degree())
			}
			continue
		}
		e := model.Edge{Source: uint64(s.node), Target: uint64(s.cursor.Next()), Property: math.NaN()}
		if s.pcur != nil {
			e.Property = s.pcur.Next()
		}
		dst[n] = e
		n++
	}
	return n, nil
}
