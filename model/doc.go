// Package model defines core types shared by the csrgo packages.
//
// # Identity Types
//
//   - NodeID: dense internal node index in [0, nodeCount), NotFound on misses
//   - Edge.Source / Edge.Target / Node.ID: original (external) ids, any uint64
//
// # Projection Types
//
//   - Aggregation: parallel edge policy (None, Single, Sum, Min, Max, Count, Keep)
//   - Orientation: Natural, Reverse or Undirected
//   - RelationshipType / Label: string tags
//
// Edges are built with a small fluent API:
//
//	e := model.NewEdge(1, 2).WithProperty(0.5).WithType("KNOWS")
package model
