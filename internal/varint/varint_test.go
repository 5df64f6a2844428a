package varint

import (
	"encoding/binary"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ids  []uint64
	}{
		{"empty", nil},
		{"single zero", []uint64{0}},
		{"small", []uint64{1, 2, 3, 10, 200}},
		{"zero deltas", []uint64{5, 5, 5, 6}},
		{"wide gaps", []uint64{127, 128, 16383, 16384, 1 << 40, MaxID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := AppendEncode(nil, tt.ids)
			require.NoError(t, err)

			n, err := EncodedLen(tt.ids)
			require.NoError(t, err)
			assert.Len(t, run, n)
			assert.Equal(t, len(tt.ids), Degree(run))

			got, err := DecodeAll(run)
			require.NoError(t, err)
			if len(tt.ids) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.ids, got)
			}
		})
	}
}

func TestRoundTrip_Random(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		ids := make([]uint64, r.IntN(500))
		for i := range ids {
			ids[i] = r.Uint64N(MaxID)
		}
		slices.Sort(ids)

		run, err := AppendEncode(make([]byte, 3), ids)
		require.NoError(t, err)
		got, err := DecodeAll(run[3:])
		require.NoError(t, err)
		require.Equal(t, len(ids), len(got))
		if len(ids) > 0 {
			require.Equal(t, ids, got)
		}
	}
}

func TestEncodedLen_Errors(t *testing.T) {
	_, err := EncodedLen([]uint64{3, 2})
	require.ErrorIs(t, err, ErrNotAscending)

	_, err = EncodedLen([]uint64{1, MaxID + 1})
	require.ErrorIs(t, err, ErrIDOutOfRange)
}

func TestVarintLen(t *testing.T) {
	buf := make([]byte, binary.MaxVarintLen64)
	for _, v := range []uint64{0, 1, 127, 128, 1 << 20, 1 << 35, MaxID} {
		assert.Equal(t, binary.PutUvarint(buf, v), VarintLen(v), "v=%d", v)
	}
	assert.Equal(t, MaxVarintLen, VarintLen(MaxID))
}

func TestDecoder(t *testing.T) {
	// Trailing bytes past the run must be ignored.
	run, err := AppendEncode(nil, []uint64{2, 4, 8, 16})
	require.NoError(t, err)
	run = append(run, 0xff, 0xff)

	var d Decoder
	d.Reset(run)
	assert.Equal(t, 4, d.Degree())
	assert.Equal(t, uint64(2), d.Peek())
	assert.Equal(t, uint64(2), d.Next())
	assert.Equal(t, 2, d.Skip(2))
	assert.Equal(t, 1, d.Remaining())
	assert.Equal(t, uint64(16), d.Next())
	assert.False(t, d.HasMore())
	assert.Panics(t, func() { d.Next() })
	assert.Equal(t, 0, d.Skip(5))

	d.Reset(run)
	assert.Equal(t, 4, d.Skip(10))
}

func TestDecodeAll_Corrupt(t *testing.T) {
	_, err := DecodeAll([]byte{1})
	require.ErrorIs(t, err, ErrCorrupt)

	run := []byte{2, 0, 0, 0, 0x80}
	_, err = DecodeAll(run)
	require.ErrorIs(t, err, ErrCorrupt)
}

func BenchmarkDecode(b *testing.B) {
	ids := make([]uint64, 1024)
	for i := range ids {
		ids[i] = uint64(i * 37)
	}
	run, _ := AppendEncode(nil, ids)
	var d Decoder
	for b.Loop() {
		d.Reset(run)
		for d.HasMore() {
			d.Next()
		}
	}
}
