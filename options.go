package csrgo

import (
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/csrgo/internal/importer"
	"github.com/hupe1980/csrgo/model"
)

type options struct {
	concurrency      int
	batchSize        int
	strict           bool
	pageShift        uint
	defaultType      TypeConfig
	types            map[RelationshipType]TypeConfig
	denseIDs         int64
	expectedNodes    uint64
	expectedRels     uint64
	memoryBudget     int64
	rc               *ResourceController
	metricsCollector MetricsCollector
	logger           *Logger
	tracerProvider   trace.TracerProvider
	progressInterval time.Duration
	progress         func(edgesRead uint64)
}

// Option configures Import.
//
// Options that shape a relationship type (aggregation, orientation,
// property, inverse index) apply to untagged edges unless types are
// declared with WithRelationshipType.
type Option func(*options)

// WithConcurrency sets the number of import workers and shards.
// Default: 1.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithBatchSize sets the number of edges pulled per source batch and
// routed per shard batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithPageShift sets the adjacency page size to 1<<shift bytes.
func WithPageShift(shift uint) Option {
	return func(o *options) {
		o.pageShift = shift
	}
}

// WithAggregation sets the parallel edge policy. There is no default: an
// import without a policy fails with ErrInvalidConfig.
func WithAggregation(a model.Aggregation) Option {
	return func(o *options) {
		o.defaultType.Aggregation = a
	}
}

// WithOrientation sets how edges are projected.
func WithOrientation(or model.Orientation) Option {
	return func(o *options) {
		o.defaultType.Orientation = or
	}
}

// WithProperty stores one property per relationship. Edges without a
// value get defaultValue.
func WithProperty(defaultValue float64) Option {
	return func(o *options) {
		o.defaultType.HasProperty = true
		o.defaultType.DefaultValue = defaultValue
	}
}

// WithInverseIndex selects inverse adjacency for untagged edges.
func WithInverseIndex(i InverseIndex) Option {
	return func(o *options) {
		o.defaultType.Inverse = i
	}
}

// WithRelationshipType declares a relationship type. Once any type is
// declared, only declared types are imported; declare AllRelationships to
// catch the rest.
func WithRelationshipType(name RelationshipType, cfg TypeConfig) Option {
	return func(o *options) {
		if o.types == nil {
			o.types = make(map[RelationshipType]TypeConfig)
		}
		o.types[name] = cfg
	}
}

// WithStrict fails the import on edges with unknown endpoints or types.
// This is the default.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithLenient drops and counts edges with unknown endpoints or types.
func WithLenient() Option {
	return func(o *options) {
		o.strict = false
	}
}

// WithDenseIDs declares that original ids are exactly 0..n-1. No node
// source is read and the id map is the identity.
func WithDenseIDs(n int64) Option {
	return func(o *options) {
		o.denseIDs = n
	}
}

// WithExpectedCounts pre-sizes the id map and lets the memory budget be
// checked before any node is read.
func WithExpectedCounts(nodes, relationships uint64) Option {
	return func(o *options) {
		o.expectedNodes = nodes
		o.expectedRels = relationships
	}
}

// WithMemoryBudget limits the memory of this import. It is ignored when
// WithResourceController is also given.
func WithMemoryBudget(bytes int64) Option {
	return func(o *options) {
		o.memoryBudget = bytes
	}
}

// WithResourceController shares a memory budget and import slots across
// imports. The graph holds its reservation until Close.
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &csrgo.BasicMetricsCollector{}
//	g, _ := csrgo.Import(ctx, nodes, edges, csrgo.WithAggregation(model.Sum), csrgo.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Imports: %d, Avg: %dns\n", stats.ImportCount, stats.ImportAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := csrgo.NewJSONLogger(slog.LevelInfo)
//	g, _ := csrgo.Import(ctx, nodes, edges, csrgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithTracerProvider sets the provider of import spans. Default: the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithProgress calls fn with the number of edges read, at most once per
// interval.
func WithProgress(interval time.Duration, fn func(edgesRead uint64)) Option {
	return func(o *options) {
		o.progressInterval = interval
		o.progress = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		concurrency:      1,
		batchSize:        importer.DefaultBatchSize,
		strict:           true,
		defaultType:      TypeConfig{Orientation: model.Natural, DefaultValue: math.NaN()},
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// typeConfigs returns the declared types or the default untagged type.
func (o *options) typeConfigs() map[RelationshipType]TypeConfig {
	if len(o.types) > 0 {
		return o.types
	}
	return map[RelationshipType]TypeConfig{AllRelationships: o.defaultType}
}

// importerConfig maps the options onto the pipeline configuration.
func (o *options) importerConfig(tracer trace.Tracer) importer.Config {
	types := o.typeConfigs()
	return importer.Config{
		Concurrency:      o.concurrency,
		BatchSize:        o.batchSize,
		Strict:           o.strict,
		Types:            types,
		PageShift:        o.pageShift,
		Acquirer:         o.rc,
		Logger:           o.logger.Logger,
		Tracer:           tracer,
		ProgressInterval: o.progressInterval,
		Progress:         o.progress,
	}
}
