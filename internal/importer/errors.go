package importer

import (
	"errors"
	"fmt"

	"github.com/hupe1980/csrgo/model"
)

var (
	// ErrCanceled is returned when the context ends before the import
	// completes. It wraps the context error.
	ErrCanceled = errors.New("importer: canceled")

	// ErrUnknownRelationshipType is returned in strict mode for edges of
	// an unconfigured type.
	ErrUnknownRelationshipType = errors.New("importer: unknown relationship type")
)

// UnknownNodeError reports an edge endpoint missing from the id map.
type UnknownNodeError struct {
	OriginalID uint64
	// Source is true when the missing id is the edge source.
	Source bool
}

func (e *UnknownNodeError) Error() string {
	end := "target"
	if e.Source {
		end = "source"
	}
	return fmt.Sprintf("importer: unknown %s node %d", end, e.OriginalID)
}

// UnknownTypeError reports an edge of an unconfigured relationship type.
type UnknownTypeError struct {
	Type model.RelationshipType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("importer: unknown relationship type %q", e.Type)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownRelationshipType }

// DuplicateError reports a parallel edge rejected under model.None. Ids
// are original ids in stored direction.
type DuplicateError struct {
	Type   model.RelationshipType
	Source uint64
	Target uint64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("importer: duplicate relationship %d -[%s]-> %d", e.Source, e.Type, e.Target)
}
