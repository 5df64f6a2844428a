package importer

import (
	"context"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/model"
)

// TransposeConfig configures Transpose.
type TransposeConfig struct {
	Concurrency int
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	PageShift uint
	Acquirer  adjacency.MemoryAcquirer
	Logger    *slog.Logger
	Tracer    trace.Tracer
}

// Transpose builds the inverse of a finished list: every stored edge
// u -> v becomes v -> u with the same property. Parallel edges stay
// parallel. props may be nil.
func Transpose(ctx context.Context, list *adjacency.List, props *adjacency.Properties, cfg TransposeConfig) (*adjacency.List, *adjacency.Properties, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	res, err := Run(ctx, idmap.FromRange(list.NodeCount()), NewListSource(list, props), Config{
		Concurrency: cfg.Concurrency,
		BatchSize:   cfg.BatchSize,
		Strict:      true,
		Types: map[model.RelationshipType]TypeConfig{
			model.AllRelationships: {
				Aggregation:  model.Keep,
				Orientation:  model.Reverse,
				HasProperty:  props != nil,
				DefaultValue: math.NaN(),
			},
		},
		PageShift: cfg.PageShift,
		Acquirer:  cfg.Acquirer,
		Logger:    cfg.Logger,
		Tracer:    cfg.Tracer,
	})
	if err != nil {
		return nil, nil, err
	}
	t := res.Topologies[model.AllRelationships]
	return t.Forward, t.ForwardProperties, nil
}
