package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/hupe1980/csrgo/internal/resource"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore gives read access to immutable input blobs (node and edge lists).
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off. It follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes starting at off. The range is clamped
	// to the blob size.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs whose contents are resident.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// NewReader returns a sequential reader over the whole blob. Resident
// blobs are read without copying. When rc carries an IO limit, reads are
// throttled through it. Closing the reader does not close the blob.
func NewReader(ctx context.Context, b Blob, rc *resource.Controller) (io.ReadCloser, error) {
	var (
		r      io.Reader
		closer io.Closer = io.NopCloser(nil)
	)

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	} else {
		if b.Size() == 0 {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		rr, err := b.ReadRange(ctx, 0, b.Size())
		if err != nil {
			return nil, err
		}
		r, closer = rr, rr
	}

	if rc != nil {
		r = resource.NewRateLimitedReader(ctx, r, rc)
	}
	return &readCloser{Reader: r, closer: closer}, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error { return r.closer.Close() }

// clampRange bounds [off, off+length) to a blob of the given size.
func clampRange(size, off, length int64) (int64, int64) {
	if off < 0 {
		off = 0
	}
	if off > size {
		off = size
	}
	end := off + length
	if length < 0 || end > size {
		end = size
	}
	return off, end
}
