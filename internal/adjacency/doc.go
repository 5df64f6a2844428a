// Package adjacency implements the compressed adjacency store.
//
// # Layout
//
// A List holds one uint64 address per node (a paged array) and a table of
// byte pages holding delta-varint runs:
//
//	offsets[node] -> pages[addr >> shift][addr & mask:] = [degree][deltas...]
//
// Runs are self-delimiting, so pages need not be sorted by node. Nodes
// without edges share the 4-byte zero run at address 0.
//
// # Construction
//
// A Builder owns two Allocators (runs and optional property values). Each
// import worker takes a Writer, which bumps inside its own page and only
// touches shared state when it needs a fresh page. A run never straddles a
// page; runs larger than a page get a dedicated page.
//
// # Traversal
//
// Cursor, PropertyCursor and CompositeCursor are reusable, allocation-free
// and not safe for concurrent use. The List itself is immutable and may be
// read from any number of goroutines.
package adjacency
