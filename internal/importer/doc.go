// Package importer builds adjacency lists from an unordered edge stream.
//
// # Pipeline
//
//	EdgeSource -> scanners (translate ids, project, route by source band)
//	           -> band owners (buffer, counting sort, aggregate, encode)
//	           -> adjacency.Builder per relationship type and direction
//
// The node range is split into contiguous bands, one per worker. Every
// node is owned by exactly one band owner, so runs are written without
// contention; the only shared state is the page allocator of each builder.
//
// Cancellation is checked between batches. Run never returns a partially
// built topology.
package importer
