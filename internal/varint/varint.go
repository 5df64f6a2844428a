// Package varint encodes ascending id sequences as delta-varint runs.
//
// A run is laid out as
//
//	[degree uint32 little-endian][uvarint delta1][uvarint delta2]...
//
// where delta_i = id_i - id_(i-1) and id_0 = 0. Ids are below 2^63, so
// every delta fits in at most MaxVarintLen bytes. Equal consecutive ids are
// encoded as zero deltas, which is how parallel edges of a multigraph are
// kept.
package varint

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	// HeaderLen is the size of the degree prefix.
	HeaderLen = 4
	// MaxVarintLen is the longest encoding of an id below 2^63.
	MaxVarintLen = 9
	// MaxID is the largest encodable id.
	MaxID = math.MaxInt64
	// MaxDegree is the largest number of ids in one run.
	MaxDegree = math.MaxInt32
)

var (
	// ErrDegreeOverflow is returned when a run would exceed MaxDegree ids.
	ErrDegreeOverflow = errors.New("varint: degree exceeds int32 range")
	// ErrNotAscending is returned when ids decrease.
	ErrNotAscending = errors.New("varint: ids are not ascending")
	// ErrIDOutOfRange is returned for ids above MaxID.
	ErrIDOutOfRange = errors.New("varint: id exceeds 63 bits")
	// ErrCorrupt is returned when a run cannot be decoded.
	ErrCorrupt = errors.New("varint: corrupt run")
)

// VarintLen returns the encoded size of v.
func VarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// EncodedLen validates ids and returns the size of their run.
func EncodedLen(ids []uint64) (int, error) {
	if len(ids) > MaxDegree {
		return 0, ErrDegreeOverflow
	}
	n := HeaderLen
	var prev uint64
	for _, id := range ids {
		if id > MaxID {
			return 0, ErrIDOutOfRange
		}
		if id < prev {
			return 0, ErrNotAscending
		}
		n += VarintLen(id - prev)
		prev = id
	}
	return n, nil
}

// Encode writes the run for ids into dst and returns the number of bytes
// written. ids must have been validated by EncodedLen and dst must be at
// least that long.
func Encode(dst []byte, ids []uint64) int {
	binary.LittleEndian.PutUint32(dst, uint32(len(ids)))
	pos := HeaderLen
	var prev uint64
	for _, id := range ids {
		pos += binary.PutUvarint(dst[pos:], id-prev)
		prev = id
	}
	return pos
}

// AppendEncode appends the run for ids to dst.
func AppendEncode(dst []byte, ids []uint64) ([]byte, error) {
	n, err := EncodedLen(ids)
	if err != nil {
		return dst, err
	}
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	Encode(dst[start:], ids)
	return dst, nil
}

// Degree reads the degree prefix of the run starting at buf.
func Degree(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf))
}

// DecodeAll decodes a complete run.
func DecodeAll(run []byte) ([]uint64, error) {
	if len(run) < HeaderLen {
		return nil, ErrCorrupt
	}
	var d Decoder
	d.Reset(run)
	out := make([]uint64, 0, d.Degree())
	for d.HasMore() {
		v, err := d.next()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Decoder lazily decodes one run. The zero value is an empty decoder;
// Reset rebinds it without allocating.
type Decoder struct {
	buf       []byte
	pos       int
	prev      uint64
	degree    int
	remaining int
}

// Reset binds the decoder to the run starting at buf. buf may extend past
// the end of the run.
func (d *Decoder) Reset(buf []byte) {
	d.buf = buf
	d.pos = HeaderLen
	d.prev = 0
	d.degree = Degree(buf)
	d.remaining = d.degree
}

// Degree returns the number of ids in the bound run.
func (d *Decoder) Degree() int { return d.degree }

// Remaining returns the number of ids not yet decoded.
func (d *Decoder) Remaining() int { return d.remaining }

// HasMore reports whether Next may be called.
func (d *Decoder) HasMore() bool { return d.remaining > 0 }

// Next decodes the next id. It panics on a corrupt run or when the run is
// exhausted.
func (d *Decoder) Next() uint64 {
	v, err := d.next()
	if err != nil {
		panic(err)
	}
	return v
}

// Peek returns the next id without consuming it.
func (d *Decoder) Peek() uint64 {
	delta, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 || d.remaining == 0 {
		panic(ErrCorrupt)
	}
	return d.prev + delta
}

// Skip consumes up to n ids and returns how many were skipped.
func (d *Decoder) Skip(n int) int {
	if n > d.remaining {
		n = d.remaining
	}
	for range n {
		d.Next()
	}
	return n
}

func (d *Decoder) next() (uint64, error) {
	if d.remaining == 0 {
		return 0, ErrCorrupt
	}
	delta, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, ErrCorrupt
	}
	d.pos += n
	d.prev += delta
	d.remaining--
	return d.prev, nil
}
