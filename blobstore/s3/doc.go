// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "graphs/",
//	    s3.WithPrefetch(s3.PrefetchConfig{MaxSize: 256 << 20}),
//	)
//
//	blob, err := store.Open(ctx, "edges.tsv.zst")
//
// # Features
//
//   - Range reads for streaming and partial fetches
//   - Parallel whole-object prefetch through the transfer manager
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
