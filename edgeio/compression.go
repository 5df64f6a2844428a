package edgeio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression of an input stream.
type Codec uint8

const (
	// CodecNone is an uncompressed stream.
	CodecNone Codec = iota
	// CodecGzip is a gzip member stream.
	CodecGzip
	// CodecZstd is a zstd frame stream.
	CodecZstd
	// CodecLZ4 is an LZ4 frame stream.
	CodecLZ4
	// CodecSnappy is a framed snappy stream.
	CodecSnappy
)

var codecNames = [...]string{
	CodecNone:   "none",
	CodecGzip:   "gzip",
	CodecZstd:   "zstd",
	CodecLZ4:    "lz4",
	CodecSnappy: "snappy",
}

var codecExtensions = map[string]Codec{
	".gz":     CodecGzip,
	".gzip":   CodecGzip,
	".zst":    CodecZstd,
	".zstd":   CodecZstd,
	".lz4":    CodecLZ4,
	".sz":     CodecSnappy,
	".snappy": CodecSnappy,
}

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic    = []byte{0x04, 0x22, 0x4d, 0x18}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// magicLen is the longest magic prefix.
const magicLen = 10

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec parses a codec name as printed by String.
func ParseCodec(s string) (Codec, error) {
	name := strings.ToLower(s)
	for i, n := range codecNames {
		if n == name {
			return Codec(i), nil
		}
	}
	return CodecNone, fmt.Errorf("edgeio: unknown codec %q", s)
}

// CodecFromName guesses the codec from a file extension.
func CodecFromName(name string) Codec {
	return codecExtensions[strings.ToLower(path.Ext(name))]
}

// Detect identifies the codec from the first bytes of a stream.
func Detect(header []byte) Codec {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return CodecZstd
	case bytes.HasPrefix(header, lz4Magic):
		return CodecLZ4
	case bytes.HasPrefix(header, snappyMagic):
		return CodecSnappy
	case bytes.HasPrefix(header, gzipMagic):
		return CodecGzip
	}
	return CodecNone
}

// NewDecompressReader sniffs the stream header and returns a reader that
// yields the decompressed contents. Closing it releases decoder state but
// does not close r.
func NewDecompressReader(r io.Reader) (io.ReadCloser, Codec, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	header, err := br.Peek(magicLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, CodecNone, err
	}

	codec := Detect(header)
	rc, err := newDecoder(br, codec)
	if err != nil {
		return nil, codec, fmt.Errorf("edgeio: open %s stream: %w", codec, err)
	}
	return rc, codec, nil
}

func newDecoder(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// NewCompressWriter wraps w so that written bytes are compressed with codec.
// Close flushes the codec but does not close w.
func NewCompressWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		return enc, nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecSnappy:
		return snappy.NewBufferedWriter(w), nil
	}
	return nil, fmt.Errorf("edgeio: unknown codec %d", codec)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
