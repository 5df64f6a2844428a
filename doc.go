// Package csrgo provides an immutable in-memory graph store in compressed
// sparse row (CSR) form for graph analytics.
//
// Every node's outgoing targets are kept as one sorted, delta-encoded varint
// run inside large shared pages, so neighbor iteration touches a single
// contiguous byte range and costs about one to two bytes per relationship.
//
// # Quick Start
//
//	ctx := context.Background()
//	nodes := csrgo.NewNodeSlice([]model.Node{model.NewNode(10), model.NewNode(20), model.NewNode(30)})
//	edges := csrgo.NewEdgeSlice([]model.Edge{
//	    model.NewEdge(10, 20).WithProperty(1.5),
//	    model.NewEdge(10, 30).WithProperty(2.0),
//	})
//
//	g, err := csrgo.Import(ctx, nodes, edges,
//	    csrgo.WithAggregation(model.Sum),
//	    csrgo.WithProperty(0),
//	    csrgo.WithConcurrency(runtime.GOMAXPROCS(0)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer g.Close()
//
//	src := g.ToInternal(10)
//	g.ForEachRelationship(src, func(s, t csrgo.NodeID) bool {
//	    fmt.Println(g.ToOriginal(s), "->", g.ToOriginal(t))
//	    return true
//	})
//
// # Import
//
// Import reads the node universe once to build the id map, then streams
// edges through a pool of workers. Each worker owns a contiguous band of
// node ids, so no two workers ever write the same run. The import checks
// its context between batches and either returns a complete graph or fails
// as a unit.
//
// Parallel edges are handled by an explicit aggregation (None, Single, Sum,
// Min, Max, Count or Keep). There is no default; forgetting it is an
// ErrInvalidConfig.
//
// # Memory Budget
//
// EstimateMemory and Estimate predict the footprint from counts alone.
// With WithMemoryBudget or WithResourceController, Import rejects work whose
// upper bound does not fit before allocating any page:
//
//	rc := csrgo.NewResourceController(csrgo.ResourceConfig{MemoryLimitBytes: 8 << 30})
//	g, err := csrgo.Import(ctx, nodes, edges, csrgo.WithResourceController(rc), ...)
//	if errors.Is(err, csrgo.ErrMemoryLimitExceeded) {
//	    // nothing was allocated
//	}
//
// # Reading
//
// A Graph is read-only and safe for any number of concurrent readers. A
// Cursor is not; every goroutine creates its own with NewCursor and rebinds
// it with Init without allocating.
//
// Inputs may come from files, S3 or MinIO through the blobstore packages,
// parsed by edgeio with transparent decompression.
package csrgo
