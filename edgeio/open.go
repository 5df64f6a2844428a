package edgeio

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/csrgo/blobstore"
	"github.com/hupe1980/csrgo/internal/resource"
)

// Stream is a decompressed view of a blob.
type Stream struct {
	io.Reader
	Codec Codec
	Size  int64

	closers []io.Closer
}

// Close releases the decoder and the blob.
func (s *Stream) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Open opens name from store and returns its decompressed contents. The
// codec is sniffed from the stream header. Reads are throttled by rc's IO
// limit when rc is non-nil.
func Open(ctx context.Context, store blobstore.BlobStore, name string, rc *resource.Controller) (*Stream, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	s := &Stream{Size: blob.Size(), closers: []io.Closer{blob}}

	raw, err := blobstore.NewReader(ctx, blob, rc)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, raw)

	dec, codec, err := NewDecompressReader(raw)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, dec)
	s.Reader, s.Codec = dec, codec
	return s, nil
}
