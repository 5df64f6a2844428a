package bitset

import (
	"math/bits"
	"sync/atomic"
)

const (
	// segmentBits determines the size of each segment.
	// 16 bits = 65536 bits per segment.
	segmentBits = 16
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1

	wordsPerSegment = segmentSize / 64
)

// BitSegment is a fixed-size segment of the bitset.
type BitSegment [wordsPerSegment]atomic.Uint64

// BitSet is a thread-safe, lock-free, fixed-size segmented bitset.
type BitSet struct {
	segments []*BitSegment
	size     uint64
}

// New creates a BitSet holding size bits, all clear.
func New(size uint64) *BitSet {
	n := (size + segmentMask) >> segmentBits
	segments := make([]*BitSegment, n)
	for i := range segments {
		segments[i] = new(BitSegment)
	}
	return &BitSet{segments: segments, size: size}
}

// Len returns the number of bits.
func (b *BitSet) Len() uint64 { return b.size }

func (b *BitSet) word(i uint64) (*atomic.Uint64, uint64) {
	if i >= b.size {
		panic("bitset: index out of range")
	}
	offset := i & segmentMask
	return &b.segments[i>>segmentBits][offset/64], uint64(1) << (offset % 64)
}

// Set sets the bit at the given index.
func (b *BitSet) Set(i uint64) {
	w, mask := b.word(i)
	w.Or(mask)
}

// TestAndSet sets the bit at the given index and returns true if it was
// ALREADY set.
func (b *BitSet) TestAndSet(i uint64) bool {
	w, mask := b.word(i)
	return w.Or(mask)&mask != 0
}

// Test returns true if the bit at the given index is set.
func (b *BitSet) Test(i uint64) bool {
	w, mask := b.word(i)
	return w.Load()&mask != 0
}

// Count returns the number of set bits.
func (b *BitSet) Count() uint64 {
	var n uint64
	for _, seg := range b.segments {
		for j := range seg {
			n += uint64(bits.OnesCount64(seg[j].Load()))
		}
	}
	return n
}

// FirstClear returns the lowest clear index, or -1 if every bit is set.
func (b *BitSet) FirstClear() int64 {
	for s, seg := range b.segments {
		for j := range seg {
			v := ^seg[j].Load()
			if v == 0 {
				continue
			}
			i := uint64(s)<<segmentBits + uint64(j)*64 + uint64(bits.TrailingZeros64(v))
			if i >= b.size {
				return -1
			}
			return int64(i)
		}
	}
	return -1
}
