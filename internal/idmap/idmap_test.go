package idmap

import (
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/csrgo/internal/paged"
	"github.com/hupe1980/csrgo/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Ascending(t *testing.T) {
	b := NewBuilder(4)
	for i, orig := range []uint64{10, 20, 30, 1 << 50} {
		id, err := b.Add(orig)
		require.NoError(t, err)
		assert.Equal(t, model.NodeID(i), id)
	}
	m := b.Build()

	assert.Nil(t, m.lookup, "ascending ids need no hash map")
	assert.Equal(t, int64(4), m.NodeCount())
	assert.Equal(t, uint64(1<<50), m.HighestOriginalID())
	assert.Equal(t, model.NodeID(2), m.ToInternal(30))
	assert.Equal(t, model.NodeID(3), m.ToInternal(1<<50))
	assert.Equal(t, model.NotFound, m.ToInternal(25))
	assert.Equal(t, model.NotFound, m.ToInternal(0))
	assert.Equal(t, uint64(20), m.ToOriginal(1))
	assert.True(t, m.Contains(10))
	assert.Panics(t, func() { m.ToOriginal(4) })
}

func TestBuilder_Unordered(t *testing.T) {
	b := NewBuilder(0)
	originals := []uint64{5, 3, 9, 1, 100}
	for _, o := range originals {
		_, err := b.Add(o)
		require.NoError(t, err)
	}
	m := b.Build()

	require.NotNil(t, m.lookup)
	assert.Equal(t, uint64(100), m.HighestOriginalID())
	for i, o := range originals {
		assert.Equal(t, model.NodeID(i), m.ToInternal(o))
		assert.Equal(t, o, m.ToOriginal(model.NodeID(i)))
	}
	assert.Equal(t, model.NotFound, m.ToInternal(4))
}

func TestBuilder_Duplicates(t *testing.T) {
	b := NewBuilder(0)
	_, err := b.Add(1)
	require.NoError(t, err)
	_, err = b.Add(1)
	var de *DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint64(1), de.OriginalID)

	_, err = b.Add(7)
	require.NoError(t, err)
	_, err = b.Add(0)
	require.NoError(t, err)
	_, err = b.Add(7)
	require.ErrorAs(t, err, &de, "detected after switching to the hash map")
}

func TestBuilder_ManyPages(t *testing.T) {
	const n = 3*paged.PageSize + 11
	r := rand.New(rand.NewPCG(5, 6))
	perm := r.Perm(n)

	sorted := NewBuilder(n / 2)
	shuffled := NewBuilder(n)
	for i := range n {
		_, err := sorted.Add(uint64(i) * 3)
		require.NoError(t, err)
		_, err = shuffled.Add(uint64(perm[i]) * 3)
		require.NoError(t, err)
	}
	ms, mu := sorted.Build(), shuffled.Build()

	for i := 0; i < n; i += 97 {
		orig := uint64(i) * 3
		assert.Equal(t, model.NodeID(i), ms.ToInternal(orig))
		id := mu.ToInternal(orig)
		require.NotEqual(t, model.NotFound, id)
		assert.Equal(t, orig, mu.ToOriginal(id))
		assert.Equal(t, model.NotFound, ms.ToInternal(orig+1))
	}

	lower, upper := BytesFor(n)
	assert.LessOrEqual(t, ms.MemoryUsage(), upper)
	assert.GreaterOrEqual(t, mu.MemoryUsage(), lower)
}

func TestMap_Labels(t *testing.T) {
	b := NewBuilder(0)
	_, _ = b.Add(1, "Person")
	_, _ = b.Add(2, "Person", "Admin")
	_, _ = b.Add(3)
	_, _ = b.Add(4, "Admin")
	m := b.Build()

	assert.Equal(t, []model.Label{"Admin", "Person"}, m.AvailableLabels())
	assert.Equal(t, []model.Label{"Admin", "Person"}, m.Labels(1))
	assert.Empty(t, m.Labels(2))
	assert.True(t, m.HasLabel(0, "Person"))
	assert.False(t, m.HasLabel(0, "Admin"))
	assert.False(t, m.HasLabel(0, "Robot"))
	assert.Equal(t, int64(2), m.NodeCountFor("Admin"))
	assert.Equal(t, int64(0), m.NodeCountFor("Robot"))

	var admins []model.NodeID
	m.ForEachNode(func(id model.NodeID) bool {
		admins = append(admins, id)
		return true
	}, "Admin")
	assert.Equal(t, []model.NodeID{1, 3}, admins)

	var all []model.NodeID
	m.ForEachNode(func(id model.NodeID) bool {
		all = append(all, id)
		return len(all) < 3
	})
	assert.Equal(t, []model.NodeID{0, 1, 2}, all)

	var first []model.Label
	m.ForEachLabel(1, func(l model.Label) bool {
		first = append(first, l)
		return false
	})
	assert.Equal(t, []model.Label{"Admin"}, first)
}

func TestFromRange(t *testing.T) {
	m := FromRange(5)
	assert.Equal(t, int64(5), m.NodeCount())
	assert.Equal(t, uint64(4), m.HighestOriginalID())
	assert.Equal(t, model.NodeID(3), m.ToInternal(3))
	assert.Equal(t, model.NotFound, m.ToInternal(5))
	assert.Equal(t, uint64(2), m.ToOriginal(2))
	assert.Empty(t, m.AvailableLabels())
	assert.Equal(t, uint64(0), m.MemoryUsage())
}
