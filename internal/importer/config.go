package importer

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/model"
)

// DefaultBatchSize is the number of records a scanner buffers per band
// before handing them to the band owner.
const DefaultBatchSize = 10_000

// InverseIndex selects whether and when the inverse adjacency is built.
type InverseIndex uint8

const (
	// InverseNone builds no inverse adjacency.
	InverseNone InverseIndex = iota
	// InverseEager builds the inverse adjacency in the same pass.
	InverseEager
	// InverseLazy builds the inverse adjacency on first request.
	InverseLazy
)

// String returns the inverse index mode name.
func (i InverseIndex) String() string {
	switch i {
	case InverseNone:
		return "none"
	case InverseEager:
		return "eager"
	case InverseLazy:
		return "lazy"
	default:
		return fmt.Sprintf("inverse(%d)", uint8(i))
	}
}

// ParseInverseIndex parses a mode name as printed by String.
func ParseInverseIndex(s string) (InverseIndex, error) {
	switch s {
	case "none", "":
		return InverseNone, nil
	case "eager":
		return InverseEager, nil
	case "lazy":
		return InverseLazy, nil
	default:
		return InverseNone, fmt.Errorf("importer: unknown inverse index %q", s)
	}
}

// TypeConfig configures the topology of one relationship type.
type TypeConfig struct {
	Aggregation model.Aggregation
	Orientation model.Orientation
	Inverse     InverseIndex
	// HasProperty stores one float64 per edge.
	HasProperty bool
	// DefaultValue replaces missing (NaN) edge properties.
	DefaultValue float64
}

// Config configures Run.
type Config struct {
	// Concurrency is the number of scanners and the number of bands.
	Concurrency int
	// BatchSize is the number of records per routed batch.
	BatchSize int
	// Strict aborts on edges with unknown endpoints or types. Otherwise
	// they are dropped and counted.
	Strict bool
	// Types maps each relationship type to its topology. Untagged edges
	// use model.AllRelationships. When Types contains model.AllRelationships,
	// edges of unlisted types are routed to it.
	Types map[model.RelationshipType]TypeConfig

	// PageShift overrides the adjacency page size. If 0, the adjacency
	// default is used.
	PageShift uint
	// Acquirer is charged for all persistent structures. It may be nil.
	Acquirer adjacency.MemoryAcquirer
	Logger   *slog.Logger
	Tracer   trace.Tracer

	// ProgressInterval throttles progress reports. If 0, one second.
	ProgressInterval time.Duration
	// Progress, if set, is called with the number of edges read so far at
	// most once per ProgressInterval.
	Progress func(edgesRead uint64)
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("importer: invalid %s: %s", e.Field, e.Reason)
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return &ConfigError{Field: "concurrency", Reason: fmt.Sprintf("must be positive, got %d", c.Concurrency)}
	}
	if c.BatchSize <= 0 {
		return &ConfigError{Field: "batch size", Reason: fmt.Sprintf("must be positive, got %d", c.BatchSize)}
	}
	if len(c.Types) == 0 {
		return &ConfigError{Field: "types", Reason: "at least one relationship type is required"}
	}
	if n := c.projectionCount(); n > math.MaxUint16+1 {
		return &ConfigError{Field: "types", Reason: fmt.Sprintf("%d projections exceed %d", n, math.MaxUint16+1)}
	}
	if c.PageShift != 0 && (c.PageShift < adjacency.MinPageShift || c.PageShift > adjacency.MaxPageShift) {
		return &ConfigError{Field: "page shift", Reason: fmt.Sprintf("%d out of range", c.PageShift)}
	}
	for _, name := range c.typeNames() {
		tc := c.Types[name]
		if !tc.Aggregation.Valid() {
			return &ConfigError{Field: "aggregation", Reason: fmt.Sprintf("type %q: must be specified", name)}
		}
		if !tc.Orientation.Valid() {
			return &ConfigError{Field: "orientation", Reason: fmt.Sprintf("type %q: %s", name, tc.Orientation)}
		}
		if tc.Inverse > InverseLazy {
			return &ConfigError{Field: "inverse index", Reason: fmt.Sprintf("type %q: %s", name, tc.Inverse)}
		}
		if tc.Aggregation == model.Count && !tc.HasProperty {
			return &ConfigError{Field: "aggregation", Reason: fmt.Sprintf("type %q: count stores the multiplicity as a property", name)}
		}
		if tc.HasProperty && c.PageShift != 0 && c.PageShift < adjacency.MinPropertyPageShift {
			return &ConfigError{Field: "page shift", Reason: fmt.Sprintf("type %q: %d is below %d for a property store", name, c.PageShift, adjacency.MinPropertyPageShift)}
		}
	}
	return nil
}

// projectionCount is the number of adjacency lists Run builds: one per
// type plus one per eager inverse of a directed type.
func (c *Config) projectionCount() int {
	n := 0
	for _, tc := range c.Types {
		n++
		if tc.Inverse == InverseEager && tc.Orientation != model.Undirected {
			n++
		}
	}
	return n
}

func (c *Config) typeNames() []model.RelationshipType {
	names := make([]model.RelationshipType, 0, len(c.Types))
	for name := range c.Types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Config) progressInterval() time.Duration {
	if c.ProgressInterval > 0 {
		return c.ProgressInterval
	}
	return time.Second
}
