package csrgo

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordImport is called after each import. s is partial when err is
	// non-nil.
	RecordImport(s ImportSummary, err error)

	// RecordRejected is called when an import is refused by the memory
	// budget before any allocation.
	RecordRejected(required, limit int64)

	// RecordTraversal is called after each relationship iteration with the
	// number of relationships visited.
	RecordTraversal(relationships int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordImport(ImportSummary, error) {}
func (NoopMetricsCollector) RecordRejected(int64, int64)       {}
func (NoopMetricsCollector) RecordTraversal(int)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ImportCount         atomic.Int64
	ImportErrors        atomic.Int64
	ImportTotalNanos    atomic.Int64
	EdgesRead           atomic.Int64
	RelationshipsStored atomic.Int64
	Rejected            atomic.Int64
	TraversalCount      atomic.Int64
	TraversedEdges      atomic.Int64
}

// RecordImport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordImport(s ImportSummary, err error) {
	b.ImportCount.Add(1)
	b.ImportTotalNanos.Add(s.Duration.Nanoseconds())
	if err != nil {
		b.ImportErrors.Add(1)
		return
	}
	b.EdgesRead.Add(int64(s.EdgesRead))
	b.RelationshipsStored.Add(int64(s.Relationships))
}

// RecordRejected implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRejected(int64, int64) {
	b.Rejected.Add(1)
}

// RecordTraversal implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTraversal(relationships int) {
	b.TraversalCount.Add(1)
	b.TraversedEdges.Add(int64(relationships))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ImportCount:         b.ImportCount.Load(),
		ImportErrors:        b.ImportErrors.Load(),
		ImportAvgNanos:      b.getAvgImportNanos(),
		EdgesRead:           b.EdgesRead.Load(),
		RelationshipsStored: b.RelationshipsStored.Load(),
		Rejected:            b.Rejected.Load(),
		TraversalCount:      b.TraversalCount.Load(),
		TraversedEdges:      b.TraversedEdges.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgImportNanos() int64 {
	count := b.ImportCount.Load()
	if count == 0 {
		return 0
	}
	return b.ImportTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ImportCount         int64
	ImportErrors        int64
	ImportAvgNanos      int64
	EdgesRead           int64
	RelationshipsStored int64
	Rejected            int64
	TraversalCount      int64
	TraversedEdges      int64
}

// OTelMetricsCollector records metrics through an OpenTelemetry meter.
type OTelMetricsCollector struct {
	imports       metric.Int64Counter
	duration      metric.Float64Histogram
	edges         metric.Int64Counter
	relationships metric.Int64Counter
	rejected      metric.Int64Counter
	traversed     metric.Int64Counter
}

// NewOTelMetricsCollector creates the csrgo instruments on meter.
func NewOTelMetricsCollector(meter metric.Meter) (*OTelMetricsCollector, error) {
	var (
		c   OTelMetricsCollector
		err error
	)
	if c.imports, err = meter.Int64Counter("csrgo.import.count",
		metric.WithDescription("Finished imports by outcome")); err != nil {
		return nil, err
	}
	if c.duration, err = meter.Float64Histogram("csrgo.import.duration",
		metric.WithDescription("Import wall time"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if c.edges, err = meter.Int64Counter("csrgo.import.edges_read",
		metric.WithDescription("Raw edges read by imports")); err != nil {
		return nil, err
	}
	if c.relationships, err = meter.Int64Counter("csrgo.import.relationships",
		metric.WithDescription("Relationships stored by imports")); err != nil {
		return nil, err
	}
	if c.rejected, err = meter.Int64Counter("csrgo.import.rejected",
		metric.WithDescription("Imports refused by the memory budget")); err != nil {
		return nil, err
	}
	if c.traversed, err = meter.Int64Counter("csrgo.traversal.relationships",
		metric.WithDescription("Relationships visited by iterations")); err != nil {
		return nil, err
	}
	return &c, nil
}

// RecordImport implements MetricsCollector.
func (c *OTelMetricsCollector) RecordImport(s ImportSummary, err error) {
	ctx := context.Background()
	outcome := attribute.String("outcome", "ok")
	if err != nil {
		outcome = attribute.String("outcome", "error")
	}
	c.imports.Add(ctx, 1, metric.WithAttributes(outcome))
	c.duration.Record(ctx, s.Duration.Seconds(), metric.WithAttributes(outcome))
	if err == nil {
		c.edges.Add(ctx, int64(s.EdgesRead))
		c.relationships.Add(ctx, int64(s.Relationships))
	}
}

// RecordRejected implements MetricsCollector.
func (c *OTelMetricsCollector) RecordRejected(int64, int64) {
	c.rejected.Add(context.Background(), 1)
}

// RecordTraversal implements MetricsCollector.
func (c *OTelMetricsCollector) RecordTraversal(relationships int) {
	c.traversed.Add(context.Background(), int64(relationships))
}
