package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		nodes  int64
		shards int
		want   int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{3, 4, 3},
		{10, 4, 4},
		{10_000, 8, 8},
		{10_001, 8, 8},
		{7, 1, 1},
	}
	for _, tt := range tests {
		bands := Partition(tt.nodes, tt.shards)
		require.Len(t, bands, tt.want, "nodes=%d shards=%d", tt.nodes, tt.shards)
		require.NoError(t, VerifyPartition(bands, tt.nodes))

		var total int64
		for i, b := range bands {
			assert.Equal(t, i, b.Index)
			assert.Positive(t, b.Len())
			total += b.Len()
		}
		assert.Equal(t, tt.nodes, total)
	}
}

func TestPartition_BandOfNode(t *testing.T) {
	const nodes = 1003
	bands := Partition(nodes, 7)
	width := bandWidth(nodes, 7)
	for n := range int64(nodes) {
		assert.True(t, bands[n/width].Contains(n), "node %d", n)
	}
}

func TestVerifyPartition_Errors(t *testing.T) {
	overlap := []Band{{Index: 0, Start: 0, End: 6}, {Index: 1, Start: 5, End: 10}}
	require.ErrorContains(t, VerifyPartition(overlap, 10), "more than one band")

	gap := []Band{{Index: 0, Start: 0, End: 4}, {Index: 1, Start: 5, End: 10}}
	require.ErrorContains(t, VerifyPartition(gap, 10), "node 4 owned by no band")

	outside := []Band{{Index: 0, Start: 0, End: 11}}
	require.ErrorContains(t, VerifyPartition(outside, 10), "outside")
}
