// Package edgeio reads and writes the plain-text node and edge lists that
// feed an import.
//
// An edge line holds a source id, a target id, an optional numeric property
// and an optional relationship type. A node line holds an id followed by its
// labels. Blank lines and lines starting with '#' or '%' are ignored.
//
// Inputs may be compressed with gzip, zstd, LZ4 or framed snappy; Open and
// NewDecompressReader detect the codec from the stream header.
//
//	s, err := edgeio.Open(ctx, blobstore.NewLocalStore("data"), "edges.tsv.zst", nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	g, err := csrgo.Import(ctx, nodes, edgeio.NewEdgeReader(s), csrgo.WithAggregation(model.Sum))
package edgeio
