package adjacency

import (
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/hupe1980/csrgo/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, nodeCount int64, cfg BuilderConfig, adj map[int64][]uint64, props map[int64][]float64) (*List, *Properties) {
	t.Helper()
	b, err := NewBuilder(nodeCount, cfg)
	require.NoError(t, err)
	w := b.NewWriter()
	for node, targets := range adj {
		require.NoError(t, w.Write(node, slices.Clone(targets), slices.Clone(props[node])))
	}
	w.Flush()
	return b.Build()
}

func TestBuilder_Basic(t *testing.T) {
	list, props := build(t, 4, BuilderConfig{Aggregation: model.None}, map[int64][]uint64{
		0: {3, 1, 2},
		2: {0},
	}, nil)
	require.Nil(t, props)

	assert.Equal(t, int64(4), list.NodeCount())
	assert.Equal(t, int64(4), list.RelationshipCount())
	assert.Equal(t, 3, list.Degree(0))
	assert.Equal(t, 0, list.Degree(1))
	assert.Equal(t, 1, list.Degree(2))
	assert.Equal(t, 0, list.Degree(3))
	assert.False(t, list.IsMultiGraph())

	assert.Equal(t, []model.NodeID{1, 2, 3}, list.Targets(nil, 0))
	assert.Empty(t, list.Targets(nil, 3))
	assert.Panics(t, func() { list.Degree(4) })
}

func TestBuilder_RejectsUnspecifiedAggregation(t *testing.T) {
	_, err := NewBuilder(3, BuilderConfig{})
	require.ErrorIs(t, err, ErrAggregationUnspecified)
}

func TestBuilder_PageShiftWithProperty(t *testing.T) {
	acq := &countingAcquirer{}
	_, err := NewBuilder(3, BuilderConfig{
		Aggregation: model.Sum,
		HasProperty: true,
		PageShift:   MinPropertyPageShift - 1,
		Acquirer:    acq,
	})
	require.Error(t, err)
	assert.Zero(t, acq.calls.Load(), "rejected before any charge")

	b, err := NewBuilder(3, BuilderConfig{Aggregation: model.Sum, PageShift: MinPageShift})
	require.NoError(t, err)
	b.Release()

	b, err = NewBuilder(3, BuilderConfig{Aggregation: model.Sum, HasProperty: true, PageShift: MinPropertyPageShift})
	require.NoError(t, err)
	b.Release()

	assert.True(t, ValidPageShift(DefaultPageShift, true))
	assert.False(t, ValidPageShift(MaxPageShift+1, false))
}

func TestBuilder_DuplicateUnderNone(t *testing.T) {
	b, err := NewBuilder(3, BuilderConfig{Aggregation: model.None})
	require.NoError(t, err)
	err = b.NewWriter().Write(1, []uint64{2, 0, 2}, nil)

	var de *DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, model.NodeID(1), de.Source)
	assert.Equal(t, model.NodeID(2), de.Target)
	b.Release()
}

func TestBuilder_SumScenario(t *testing.T) {
	// (0->1, 0->2, 1->2, 1->2) with weight 1.5 each.
	list, props := build(t, 3, BuilderConfig{Aggregation: model.Sum, HasProperty: true}, map[int64][]uint64{
		0: {1, 2},
		1: {2, 2},
	}, map[int64][]float64{
		0: {1.5, 1.5},
		1: {1.5, 1.5},
	})
	require.NotNil(t, props)

	assert.Equal(t, 2, list.Degree(0))
	assert.Equal(t, 1, list.Degree(1))
	assert.Equal(t, int64(3), list.RelationshipCount())

	c := list.Cursor(nil, 1)
	pc := props.Cursor(nil, 1, c.Degree())
	require.True(t, c.HasNext())
	assert.Equal(t, model.NodeID(2), c.Next())
	assert.Equal(t, 3.0, pc.Next())
	assert.False(t, c.HasNext())
	assert.False(t, pc.HasNext())
}

func TestBuilder_Keep(t *testing.T) {
	list, props := build(t, 2, BuilderConfig{Aggregation: model.Keep, HasProperty: true}, map[int64][]uint64{
		0: {1, 1, 0},
	}, map[int64][]float64{
		0: {2, 3, 4},
	})
	assert.True(t, list.IsMultiGraph())
	assert.Equal(t, []model.NodeID{0, 1, 1}, list.Targets(nil, 0))

	pc := props.Cursor(nil, 0, 3)
	assert.Equal(t, 4.0, pc.Next())
	assert.Equal(t, 2.0, pc.Next(), "stable order among parallel edges")
	assert.Equal(t, 3.0, pc.Next())
}

func TestBuilder_LargeRunsSpanPages(t *testing.T) {
	const nodes = 50
	r := rand.New(rand.NewPCG(3, 4))
	adj := make(map[int64][]uint64)
	for n := range int64(nodes) {
		deg := r.IntN(3000)
		if n == 7 {
			deg = 20000 // larger than one 4 KiB page
		}
		set := make(map[uint64]struct{})
		for len(set) < deg {
			set[r.Uint64N(1<<40)] = struct{}{}
		}
		for id := range set {
			adj[n] = append(adj[n], id)
		}
	}

	list, _ := build(t, nodes, BuilderConfig{Aggregation: model.None, PageShift: 12}, adj, nil)
	var total int64
	for n := range int64(nodes) {
		want := slices.Clone(adj[n])
		slices.Sort(want)
		got := list.Targets(nil, n)
		require.Len(t, got, len(want))
		for i := range want {
			require.Equal(t, int64(want[i]), got[i])
		}
		total += int64(len(want))
	}
	assert.Equal(t, total, list.RelationshipCount())
	assert.Greater(t, list.PageCount(), 2)
}

func TestBuilder_ConcurrentWriters(t *testing.T) {
	const nodes = 4000
	b, err := NewBuilder(nodes, BuilderConfig{Aggregation: model.Single, HasProperty: true, PageShift: 12})
	require.NoError(t, err)

	var wg sync.WaitGroup
	const workers = 4
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writer := b.NewWriter()
			defer writer.Flush()
			for n := int64(w); n < nodes; n += workers {
				targets := []uint64{uint64(n), uint64(n) + 1, uint64(n)}
				props := []float64{float64(n), 0, -1}
				if err := writer.Write(n, targets, props); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	list, props := b.Build()
	assert.Equal(t, int64(2*nodes), list.RelationshipCount())
	assert.Equal(t, int64(nodes), b.Collapsed())

	c := list.NewCursor()
	pc := props.NewCursor()
	for n := range int64(nodes) {
		c.Init(n)
		pc.Init(n, c.Degree())
		require.Equal(t, model.NodeID(n), c.Next())
		require.Equal(t, float64(n), pc.Next(), "single keeps the first occurrence")
		require.Equal(t, model.NodeID(n+1), c.Next())
	}
}

func TestBuilder_ChargesAndRelease(t *testing.T) {
	acq := &countingAcquirer{}
	list, props := build(t, 100, BuilderConfig{Aggregation: model.Max, HasProperty: true, Acquirer: acq}, map[int64][]uint64{
		5: {1, 1},
	}, map[int64][]float64{
		5: {1, 9},
	})
	assert.Positive(t, acq.used.Load())

	pc := props.Cursor(nil, 5, list.Degree(5))
	assert.Equal(t, 9.0, pc.Next())

	list.Release()
	props.Release()
	assert.Equal(t, int64(0), acq.used.Load())
	list.Release()
	assert.Equal(t, int64(0), acq.used.Load())
}

func TestBuilder_ReleaseWithoutBuild(t *testing.T) {
	acq := &countingAcquirer{}
	b, err := NewBuilder(10, BuilderConfig{Aggregation: model.Count, HasProperty: true, Acquirer: acq})
	require.NoError(t, err)
	require.NoError(t, b.NewWriter().Write(0, []uint64{1, 1, 1}, []float64{0, 0, 0}))
	assert.Positive(t, b.Charged())

	b.Release()
	assert.Equal(t, int64(0), acq.used.Load())
}

func TestBuilder_BudgetExceeded(t *testing.T) {
	acq := &countingAcquirer{limit: 64}
	_, err := NewBuilder(1000, BuilderConfig{Aggregation: model.None, Acquirer: acq})
	require.Error(t, err)
	assert.Equal(t, int64(0), acq.used.Load())
}
