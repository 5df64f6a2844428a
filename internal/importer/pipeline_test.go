package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/internal/resource"
	"github.com/hupe1980/csrgo/model"
)

func idsFor(t *testing.T, originals ...uint64) *idmap.Map {
	t.Helper()
	b := idmap.NewBuilder(uint64(len(originals)))
	for _, o := range originals {
		_, err := b.Add(o)
		require.NoError(t, err)
	}
	return b.Build()
}

func singleType(tc TypeConfig) map[model.RelationshipType]TypeConfig {
	return map[model.RelationshipType]TypeConfig{model.AllRelationships: tc}
}

func testConfig(concurrency int, tc TypeConfig) Config {
	return Config{
		Concurrency: concurrency,
		BatchSize:   64,
		Strict:      true,
		Types:       singleType(tc),
	}
}

func targetsOf(list *adjacency.List, node model.NodeID) []model.NodeID {
	return list.Targets(nil, node)
}

func TestConfig_Validate(t *testing.T) {
	valid := testConfig(2, TypeConfig{Aggregation: model.None})
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }, "batch size"},
		{"no types", func(c *Config) { c.Types = nil }, "types"},
		{"bad page shift", func(c *Config) { c.PageShift = 3 }, "page shift"},
		{"unspecified aggregation", func(c *Config) {
			c.Types = singleType(TypeConfig{})
		}, "aggregation"},
		{"bad orientation", func(c *Config) {
			c.Types = singleType(TypeConfig{Aggregation: model.Sum, Orientation: 9})
		}, "orientation"},
		{"bad inverse", func(c *Config) {
			c.Types = singleType(TypeConfig{Aggregation: model.Sum, Inverse: 7})
		}, "inverse index"},
		{"count without property", func(c *Config) {
			c.Types = singleType(TypeConfig{Aggregation: model.Count})
		}, "aggregation"},
		{"page shift too small for property", func(c *Config) {
			c.PageShift = adjacency.MinPropertyPageShift - 1
			c.Types = singleType(TypeConfig{Aggregation: model.Sum, HasProperty: true})
		}, "page shift"},
		{"too many projections", func(c *Config) {
			c.Types = make(map[model.RelationshipType]TypeConfig)
			for i := range math.MaxUint16/2 + 2 {
				c.Types[model.RelationshipType(fmt.Sprintf("T%d", i))] = TypeConfig{Aggregation: model.Sum, Inverse: InverseEager}
			}
		}, "types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(2, TypeConfig{Aggregation: model.None})
			tt.mutate(&cfg)
			var ce *ConfigError
			require.ErrorAs(t, cfg.Validate(), &ce)
			assert.Equal(t, tt.field, ce.Field)

			res, err := Run(t.Context(), idsFor(t, 1), NewSliceSource(nil), cfg)
			require.ErrorAs(t, err, &ce)
			assert.Nil(t, res)
		})
	}
}

func TestConfig_ValidateProjectionLimit(t *testing.T) {
	cfg := testConfig(1, TypeConfig{Aggregation: model.Sum})
	cfg.Types = make(map[model.RelationshipType]TypeConfig)
	for i := range math.MaxUint16/2 + 2 {
		// Undirected types never get a second projection.
		cfg.Types[model.RelationshipType(fmt.Sprintf("T%d", i))] = TypeConfig{
			Aggregation: model.Sum,
			Orientation: model.Undirected,
			Inverse:     InverseEager,
		}
	}
	require.NoError(t, cfg.Validate())

	cfg.PageShift = adjacency.MinPropertyPageShift
	cfg.Types = singleType(TypeConfig{Aggregation: model.Count, HasProperty: true})
	require.NoError(t, cfg.Validate())
}

func TestRun_SumScenario(t *testing.T) {
	edges := []model.Edge{
		model.NewEdge(0, 1).WithProperty(1.5),
		model.NewEdge(0, 2).WithProperty(1.5),
		model.NewEdge(1, 2).WithProperty(1.5),
		model.NewEdge(1, 2).WithProperty(1.5),
	}
	res, err := Run(t.Context(), idsFor(t, 0, 1, 2), NewSliceSource(edges),
		testConfig(2, TypeConfig{Aggregation: model.Sum, HasProperty: true}))
	require.NoError(t, err)

	top := res.Topologies[model.AllRelationships]
	require.NotNil(t, top)
	assert.Equal(t, 2, top.Forward.Degree(0))
	assert.Equal(t, 1, top.Forward.Degree(1))
	assert.Equal(t, 0, top.Forward.Degree(2))

	c := top.Forward.Cursor(nil, 1)
	pc := top.ForwardProperties.Cursor(nil, 1, c.Degree())
	assert.Equal(t, model.NodeID(2), c.Next())
	assert.Equal(t, 3.0, pc.Next())

	assert.Equal(t, uint64(4), res.Summary.EdgesRead)
	assert.Equal(t, uint64(4), res.Summary.EdgesImported)
	assert.Equal(t, uint64(1), res.Summary.DuplicatesAggregated)
	assert.Equal(t, uint64(3), res.Summary.PerType[model.AllRelationships])
	assert.Equal(t, 2, res.Summary.Shards)
	assert.Nil(t, top.Inverse)
}

type pairKey uint64

func randomGraph(nodes, edges int, seed uint64) ([]uint64, []model.Edge) {
	originals := make([]uint64, nodes)
	for i := range originals {
		originals[i] = uint64(i)*7 + 3
	}
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]model.Edge, edges)
	for i := range out {
		s := originals[r.IntN(nodes)]
		d := originals[r.IntN(nodes)]
		out[i] = model.NewEdge(s, d).WithProperty(float64(i))
	}
	return originals, out
}

func TestRun_ShardedMatchesSingleThreaded(t *testing.T) {
	nodes, edgeCount := 10_000, 1_000_000
	if testing.Short() {
		edgeCount = 100_000
	}
	originals, edges := randomGraph(nodes, edgeCount, 42)
	ids := idsFor(t, originals...)

	expected := make([]pairKey, 0, len(edges))
	for _, e := range edges {
		s, d := ids.ToInternal(e.Source), ids.ToInternal(e.Target)
		expected = append(expected, pairKey(uint64(s)<<32|uint64(d)))
	}
	slices.Sort(expected)
	expected = slices.Compact(expected)

	cfg := func(concurrency int) Config {
		return Config{
			Concurrency: concurrency,
			BatchSize:   1000,
			Strict:      true,
			Types:       singleType(TypeConfig{Aggregation: model.Single}),
		}
	}
	sharded, err := Run(t.Context(), ids, NewSliceSource(edges), cfg(8))
	require.NoError(t, err)
	single, err := Run(t.Context(), ids, NewSliceSource(edges), cfg(1))
	require.NoError(t, err)

	a := sharded.Topologies[model.AllRelationships].Forward
	b := single.Topologies[model.AllRelationships].Forward
	assert.Equal(t, int64(len(expected)), a.RelationshipCount())
	assert.Equal(t, b.RelationshipCount(), a.RelationshipCount())
	assert.Equal(t, uint64(edgeCount), sharded.Summary.EdgesImported)
	assert.Equal(t, uint64(edgeCount-len(expected)), sharded.Summary.DuplicatesAggregated)

	var decoded int64
	var got []pairKey
	cursor := a.NewCursor()
	for n := range int64(nodes) {
		require.Equal(t, b.Degree(n), a.Degree(n), "degree of node %d", n)
		require.Equal(t, targetsOf(b, n), targetsOf(a, n), "targets of node %d", n)
		cursor.Init(n)
		count := 0
		for cursor.HasNext() {
			got = append(got, pairKey(uint64(n)<<32|uint64(cursor.Next())))
			count++
		}
		require.Equal(t, a.Degree(n), count)
		decoded += int64(count)
	}
	assert.Equal(t, a.RelationshipCount(), decoded)
	assert.Equal(t, expected, got)
}

func TestRun_NoneRejectsDuplicates(t *testing.T) {
	edges := []model.Edge{model.NewEdge(10, 20), model.NewEdge(20, 10), model.NewEdge(10, 20)}
	res, err := Run(t.Context(), idsFor(t, 10, 20), NewSliceSource(edges),
		testConfig(2, TypeConfig{Aggregation: model.None}))
	require.Nil(t, res)

	var de *DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint64(10), de.Source)
	assert.Equal(t, uint64(20), de.Target)
	assert.Equal(t, model.AllRelationships, de.Type)
}

func TestRun_StrictAndLenient(t *testing.T) {
	ids := idsFor(t, 1, 2, 3)
	edges := []model.Edge{
		model.NewEdge(1, 2),
		model.NewEdge(1, 99),
		model.NewEdge(98, 3),
		model.NewEdge(98, 99),
		model.NewEdge(2, 3),
	}

	t.Run("strict", func(t *testing.T) {
		_, err := Run(t.Context(), ids, NewSliceSource(edges), testConfig(1, TypeConfig{Aggregation: model.None}))
		var ue *UnknownNodeError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, uint64(99), ue.OriginalID)
		assert.False(t, ue.Source)
	})

	t.Run("lenient", func(t *testing.T) {
		cfg := testConfig(3, TypeConfig{Aggregation: model.None})
		cfg.Strict = false
		res, err := Run(t.Context(), ids, NewSliceSource(edges), cfg)
		require.NoError(t, err)

		assert.Equal(t, uint64(5), res.Summary.EdgesRead)
		assert.Equal(t, uint64(2), res.Summary.EdgesImported)
		assert.Equal(t, uint64(3), res.Summary.Discarded)
		assert.Equal(t, uint64(2), res.Summary.UnknownNodeIDs)
		assert.True(t, res.Unknown.Contains(98))
		assert.True(t, res.Unknown.Contains(99))
		assert.Equal(t, int64(2), res.Topologies[model.AllRelationships].Forward.RelationshipCount())
	})
}

func TestRun_Types(t *testing.T) {
	ids := idsFor(t, 0, 1, 2)
	edges := []model.Edge{
		model.NewEdge(0, 1).WithType("KNOWS"),
		model.NewEdge(1, 2).WithType("LIKES").WithProperty(4),
		model.NewEdge(2, 0).WithType("HATES"),
	}
	types := map[model.RelationshipType]TypeConfig{
		"KNOWS": {Aggregation: model.None},
		"LIKES": {Aggregation: model.Max, HasProperty: true, DefaultValue: 1},
	}

	_, err := Run(t.Context(), ids, NewSliceSource(edges), Config{Concurrency: 2, BatchSize: 8, Strict: true, Types: types})
	require.ErrorIs(t, err, ErrUnknownRelationshipType)

	res, err := Run(t.Context(), ids, NewSliceSource(edges), Config{Concurrency: 2, BatchSize: 8, Types: types})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Summary.Discarded)
	assert.Equal(t, uint64(0), res.Summary.UnknownNodeIDs)
	require.Len(t, res.Topologies, 2)
	assert.Equal(t, []model.NodeID{1}, targetsOf(res.Topologies["KNOWS"].Forward, 0))
	assert.Equal(t, []model.NodeID{2}, targetsOf(res.Topologies["LIKES"].Forward, 1))
	assert.Nil(t, res.Topologies["KNOWS"].ForwardProperties)

	types[model.AllRelationships] = TypeConfig{Aggregation: model.None}
	res, err = Run(t.Context(), ids, NewSliceSource(edges), Config{Concurrency: 2, BatchSize: 8, Strict: true, Types: types})
	require.NoError(t, err, "unlisted types fall back to the wildcard")
	assert.Equal(t, []model.NodeID{0}, targetsOf(res.Topologies[model.AllRelationships].Forward, 2))
}

func TestRun_DefaultValue(t *testing.T) {
	edges := []model.Edge{model.NewEdge(0, 1), model.NewEdge(1, 0).WithProperty(7)}
	res, err := Run(t.Context(), idsFor(t, 0, 1), NewSliceSource(edges),
		testConfig(1, TypeConfig{Aggregation: model.None, HasProperty: true, DefaultValue: 0.5}))
	require.NoError(t, err)
	top := res.Topologies[model.AllRelationships]
	assert.Equal(t, 0.5, top.ForwardProperties.Cursor(nil, 0, 1).Next())
	assert.Equal(t, 7.0, top.ForwardProperties.Cursor(nil, 1, 1).Next())
}

func TestRun_Orientations(t *testing.T) {
	ids := idsFor(t, 0, 1, 2)
	edges := []model.Edge{model.NewEdge(0, 1), model.NewEdge(0, 2), model.NewEdge(2, 2)}

	t.Run("reverse", func(t *testing.T) {
		res, err := Run(t.Context(), ids, NewSliceSource(edges),
			testConfig(2, TypeConfig{Aggregation: model.None, Orientation: model.Reverse}))
		require.NoError(t, err)
		fwd := res.Topologies[model.AllRelationships].Forward
		assert.Empty(t, targetsOf(fwd, 0))
		assert.Equal(t, []model.NodeID{0}, targetsOf(fwd, 1))
		assert.Equal(t, []model.NodeID{0, 2}, targetsOf(fwd, 2))
	})

	t.Run("undirected", func(t *testing.T) {
		res, err := Run(t.Context(), ids, NewSliceSource(edges),
			testConfig(2, TypeConfig{Aggregation: model.None, Orientation: model.Undirected, Inverse: InverseEager}))
		require.NoError(t, err)
		top := res.Topologies[model.AllRelationships]
		assert.Equal(t, []model.NodeID{1, 2}, targetsOf(top.Forward, 0))
		assert.Equal(t, []model.NodeID{0}, targetsOf(top.Forward, 1))
		assert.Equal(t, []model.NodeID{0, 2}, targetsOf(top.Forward, 2), "self-loop stored once")
		assert.Equal(t, int64(5), top.Forward.RelationshipCount())
		assert.Same(t, top.Forward, top.Inverse)
	})

	t.Run("eager inverse", func(t *testing.T) {
		res, err := Run(t.Context(), ids, NewSliceSource(edges),
			testConfig(2, TypeConfig{Aggregation: model.None, Inverse: InverseEager, HasProperty: true}))
		require.NoError(t, err)
		top := res.Topologies[model.AllRelationships]
		require.NotNil(t, top.Inverse)
		require.NotNil(t, top.InverseProperties)
		assert.Equal(t, []model.NodeID{1, 2}, targetsOf(top.Forward, 0))
		assert.Empty(t, targetsOf(top.Inverse, 0))
		assert.Equal(t, []model.NodeID{0}, targetsOf(top.Inverse, 1))
		assert.Equal(t, []model.NodeID{0, 2}, targetsOf(top.Inverse, 2))
	})
}

func TestRun_ChargesAndReleases(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
	_, edges := randomGraph(100, 1000, 7)
	originals := make([]uint64, 100)
	for i := range originals {
		originals[i] = uint64(i)*7 + 3
	}
	cfg := testConfig(4, TypeConfig{Aggregation: model.Sum, HasProperty: true, Inverse: InverseEager})
	cfg.Acquirer = rc

	res, err := Run(t.Context(), idsFor(t, originals...), NewSliceSource(edges), cfg)
	require.NoError(t, err)
	assert.Positive(t, rc.MemoryUsage())

	res.Release()
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestRun_BudgetRejectedBeforePages(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1024})
	cfg := testConfig(2, TypeConfig{Aggregation: model.None})
	cfg.Acquirer = rc

	originals := make([]uint64, 10_000)
	for i := range originals {
		originals[i] = uint64(i)
	}
	_, err := Run(t.Context(), idsFor(t, originals...), NewSliceSource(nil), cfg)
	require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

// cancelingSource cancels the import after the first batch.
type cancelingSource struct {
	inner  EdgeSource
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (s *cancelingSource) NextBatch(dst []model.Edge) (int, error) {
	if s.calls.Add(1) == 2 {
		s.cancel()
	}
	return s.inner.NextBatch(dst)
}

func TestRun_Cancellation(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	_, edges := randomGraph(1000, 100_000, 9)
	originals := make([]uint64, 1000)
	for i := range originals {
		originals[i] = uint64(i)*7 + 3
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	cfg := testConfig(4, TypeConfig{Aggregation: model.Keep, HasProperty: true})
	cfg.Acquirer = rc

	src := &cancelingSource{inner: NewSliceSource(edges), cancel: cancel}
	res, err := Run(ctx, idsFor(t, originals...), src, cfg)
	require.Nil(t, res)
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), rc.MemoryUsage(), "partial builders are released")
}

type failingSource struct{ err error }

func (s failingSource) NextBatch([]model.Edge) (int, error) { return 0, s.err }

func TestRun_SourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(t.Context(), idsFor(t, 1), failingSource{boom}, testConfig(2, TypeConfig{Aggregation: model.None}))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCanceled)
}

func TestRun_EmptyGraph(t *testing.T) {
	cfg := testConfig(4, TypeConfig{Aggregation: model.None})
	cfg.Strict = false
	res, err := Run(t.Context(), idmap.FromRange(0), NewSliceSource([]model.Edge{model.NewEdge(1, 2)}), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.Shards)
	assert.Equal(t, uint64(1), res.Summary.Discarded)
	assert.Equal(t, int64(0), res.Topologies[model.AllRelationships].Forward.NodeCount())
}

func TestRun_Progress(t *testing.T) {
	_, edges := randomGraph(10, 500, 1)
	originals := make([]uint64, 10)
	for i := range originals {
		originals[i] = uint64(i)*7 + 3
	}
	var calls atomic.Int64
	cfg := testConfig(2, TypeConfig{Aggregation: model.Count, HasProperty: true})
	cfg.Progress = func(uint64) { calls.Add(1) }

	_, err := Run(t.Context(), idsFor(t, originals...), NewSliceSource(edges), cfg)
	require.NoError(t, err)
	assert.Positive(t, calls.Load())
}

func TestTranspose(t *testing.T) {
	edges := []model.Edge{
		model.NewEdge(0, 1).WithProperty(1),
		model.NewEdge(0, 2).WithProperty(2),
		model.NewEdge(1, 2).WithProperty(3),
		model.NewEdge(1, 2).WithProperty(4),
		model.NewEdge(3, 0).WithProperty(5),
	}
	res, err := Run(t.Context(), idsFor(t, 0, 1, 2, 3), NewSliceSource(edges),
		testConfig(2, TypeConfig{Aggregation: model.Keep, HasProperty: true}))
	require.NoError(t, err)
	top := res.Topologies[model.AllRelationships]

	inv, props, err := Transpose(t.Context(), top.Forward, top.ForwardProperties, TransposeConfig{Concurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, top.Forward.RelationshipCount(), inv.RelationshipCount())
	assert.True(t, inv.IsMultiGraph())
	assert.Equal(t, []model.NodeID{3}, targetsOf(inv, 0))
	assert.Equal(t, []model.NodeID{0}, targetsOf(inv, 1))
	assert.Equal(t, []model.NodeID{0, 1, 1}, targetsOf(inv, 2))
	assert.Empty(t, targetsOf(inv, 3))

	pc := props.Cursor(nil, 2, inv.Degree(2))
	var values []float64
	for pc.HasNext() {
		values = append(values, pc.Next())
	}
	assert.ElementsMatch(t, []float64{2, 3, 4}, values)
	assert.Equal(t, 2.0, values[0])

	noProps, nilProps, err := Transpose(t.Context(), top.Forward, nil, TransposeConfig{Concurrency: 1})
	require.NoError(t, err)
	assert.Nil(t, nilProps)
	assert.Equal(t, targetsOf(inv, 2), targetsOf(noProps, 2))
}

func TestListSource(t *testing.T) {
	res, err := Run(t.Context(), idsFor(t, 0, 1, 2), NewSliceSource([]model.Edge{
		model.NewEdge(2, 0), model.NewEdge(0, 1), model.NewEdge(2, 1),
	}), testConfig(1, TypeConfig{Aggregation: model.None}))
	require.NoError(t, err)

	src := NewListSource(res.Topologies[model.AllRelationships].Forward, nil)
	buf := make([]model.Edge, 2)
	n, err := src.NextBatch(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, uint64(0), buf[0].Source)
	assert.Equal(t, uint64(1), buf[0].Target)
	assert.True(t, math.IsNaN(buf[0].Property))
	assert.Equal(t, uint64(2), buf[1].Source)

	n, err = src.NextBatch(buf)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, n)
}
