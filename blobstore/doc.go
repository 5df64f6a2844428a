// Package blobstore provides read access to the node and edge lists an
// import consumes.
//
// BlobStore opens immutable blobs by name. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory mapped
//   - MemoryStore: in-memory blobs for tests and generated inputs
//   - s3.Store: Amazon S3 with range reads and parallel whole-object prefetch
//   - minio.Store: MinIO and other S3-compatible services
//
// NewReader turns any Blob into a sequential stream, optionally throttled by
// the IO limit of a resource controller.
package blobstore
