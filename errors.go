package csrgo

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/csrgo/internal/adjacency"
	"github.com/hupe1980/csrgo/internal/idmap"
	"github.com/hupe1980/csrgo/internal/importer"
	"github.com/hupe1980/csrgo/internal/resource"
	"github.com/hupe1980/csrgo/internal/varint"
)

var (
	// ErrInvalidConfig is returned when an import is configured incorrectly.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDuplicateRelationship is returned when a parallel edge is found
	// under the None aggregation.
	ErrDuplicateRelationship = errors.New("duplicate relationship")

	// ErrUnknownNode is returned in strict mode when an edge endpoint is not
	// in the node set.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode is returned when the node source repeats an id.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownRelationshipType is returned in strict mode for edges of an
	// unconfigured type, and by views naming a type the graph lacks.
	ErrUnknownRelationshipType = errors.New("unknown relationship type")

	// ErrMemoryLimitExceeded is returned when an import does not fit the
	// memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrImportCanceled is returned when the import context ends first. The
	// context error is wrapped as well.
	ErrImportCanceled = errors.New("import canceled")

	// ErrInverseNotIndexed is returned by inverse traversals of types
	// imported without an inverse index.
	ErrInverseNotIndexed = errors.New("inverse relationships not indexed")

	// ErrNoProperty is returned when a property is requested from a graph
	// without relationship properties.
	ErrNoProperty = errors.New("relationship property not loaded")

	// ErrDegreeOverflow is returned when a node has more than MaxInt32
	// relationships of one type.
	ErrDegreeOverflow = varint.ErrDegreeOverflow

	// ErrClosed is returned by operations on a closed graph.
	ErrClosed = errors.New("graph closed")
)

// ConfigError reports an invalid import option.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrInvalidConfig}
	}
	return []error{ErrInvalidConfig, e.cause}
}

// UnknownNodeError reports an edge endpoint missing from the node set.
type UnknownNodeError struct {
	OriginalID uint64
	// Source is true when the missing id is the edge source.
	Source bool
	cause  error
}

func (e *UnknownNodeError) Error() string {
	end := "target"
	if e.Source {
		end = "source"
	}
	return fmt.Sprintf("unknown %s node %d", end, e.OriginalID)
}

func (e *UnknownNodeError) Unwrap() []error { return []error{ErrUnknownNode, e.cause} }

// DuplicateRelationshipError reports a rejected parallel edge. Ids are
// original ids.
type DuplicateRelationshipError struct {
	Type   RelationshipType
	Source uint64
	Target uint64
	cause  error
}

func (e *DuplicateRelationshipError) Error() string {
	return fmt.Sprintf("duplicate relationship %d -[%s]-> %d", e.Source, e.Type, e.Target)
}

func (e *DuplicateRelationshipError) Unwrap() []error {
	return []error{ErrDuplicateRelationship, e.cause}
}

// MemoryLimitError reports an import rejected by the memory budget.
type MemoryLimitError struct {
	// Required is the upper bound of the estimate, or the failed page
	// reservation.
	Required int64
	Limit    int64
	cause    error
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded: %d bytes required, limit %d", e.Required, e.Limit)
}

func (e *MemoryLimitError) Unwrap() []error { return []error{ErrMemoryLimitExceeded, e.cause} }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, importer.ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrImportCanceled, err)
	}

	var ce *importer.ConfigError
	if errors.As(err, &ce) {
		return &ConfigError{Field: ce.Field, Reason: ce.Reason, cause: err}
	}
	if errors.Is(err, adjacency.ErrAggregationUnspecified) {
		return &ConfigError{Field: "aggregation", Reason: "must be specified", cause: err}
	}

	var un *importer.UnknownNodeError
	if errors.As(err, &un) {
		return &UnknownNodeError{OriginalID: un.OriginalID, Source: un.Source, cause: err}
	}
	if errors.Is(err, importer.ErrUnknownRelationshipType) {
		return fmt.Errorf("%w: %w", ErrUnknownRelationshipType, err)
	}

	var dup *importer.DuplicateError
	if errors.As(err, &dup) {
		return &DuplicateRelationshipError{Type: dup.Type, Source: dup.Source, Target: dup.Target, cause: err}
	}
	var dn *idmap.DuplicateError
	if errors.As(err, &dn) {
		return fmt.Errorf("%w: %w", ErrDuplicateNode, err)
	}

	var le *resource.LimitError
	if errors.As(err, &le) {
		return &MemoryLimitError{Required: le.Required, Limit: le.Limit, cause: err}
	}

	return err
}
