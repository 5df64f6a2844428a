package model

import (
	"fmt"
	"strings"
)

// Aggregation is the policy applied to parallel edges, i.e. edges sharing
// the same (source, target) pair within one relationship type.
//
// The zero value is deliberately invalid: an import must always name its
// policy.
type Aggregation uint8

const (
	// AggregationUnspecified is the zero value and always a configuration error.
	AggregationUnspecified Aggregation = iota
	// None rejects the import when a duplicate pair is found.
	None
	// Single keeps the first occurrence and its property.
	Single
	// Sum adds up the properties of all occurrences.
	Sum
	// Min keeps the smallest property.
	Min
	// Max keeps the largest property.
	Max
	// Count stores the number of occurrences as the property.
	Count
	// Keep stores every occurrence, producing a multigraph.
	Keep
)

var aggregationNames = [...]string{
	AggregationUnspecified: "unspecified",
	None:                   "none",
	Single:                 "single",
	Sum:                    "sum",
	Min:                    "min",
	Max:                    "max",
	Count:                  "count",
	Keep:                   "keep",
}

// String returns the policy name.
func (a Aggregation) String() string {
	if int(a) < len(aggregationNames) {
		return aggregationNames[a]
	}
	return fmt.Sprintf("aggregation(%d)", uint8(a))
}

// Valid reports whether a names a usable policy.
func (a Aggregation) Valid() bool { return a > AggregationUnspecified && a <= Keep }

// Collapses reports whether the policy merges duplicates into one edge.
func (a Aggregation) Collapses() bool { return a >= Single && a <= Count }

// ParseAggregation parses a case-insensitive policy name.
func ParseAggregation(s string) (Aggregation, error) {
	name := strings.ToLower(s)
	for i, n := range aggregationNames {
		if i == int(AggregationUnspecified) {
			continue
		}
		if n == name {
			return Aggregation(i), nil
		}
	}
	return AggregationUnspecified, fmt.Errorf("unknown aggregation %q", s)
}
